package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
)

const (
	serverName    = "Tariff MCP Server"
	serverVersion = "1.0.0"
	dateLayout    = "2006-01-02"
)

const instructions = `Two tools help with customs tariff computations.
1) With only a product description, call find_hts8(query) to propose HTS-8 codes.
   Confirm the code with the user before calculating.
2) Once hts8, itemValue, itemQuantity, originCountry, countryOfArrival,
   modeOfTransport, entryDate and loadingDate are known, call calculate_tariff.
Countries are ISO 3166-1 alpha-2 codes. modeOfTransport is one of air, sea, land.`

var transportModes = map[string]struct{}{
	"air":  {},
	"sea":  {},
	"land": {},
}

type Server struct {
	quoter      ports.TariffQuoter
	searchLimit int
	mcp         *server.MCPServer
}

// NewServer registers find_hts8 and calculate_tariff against the facade.
// searchLimit caps the codes returned by find_hts8; zero means 10.
func NewServer(quoter ports.TariffQuoter, searchLimit int) *Server {
	if searchLimit <= 0 {
		searchLimit = 10
	}
	s := &Server{
		quoter:      quoter,
		searchLimit: searchLimit,
		mcp: server.NewMCPServer(
			serverName,
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithInstructions(instructions),
		),
	}

	s.mcp.AddTool(mcp.NewTool("find_hts8",
		mcp.WithDescription("Search HTS-8 codes by keyword or code prefix (e.g. 'leather shoes' or '6403'). Returns one code and description per line."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Product description or partial HTS code")),
	), s.findHTS8)

	s.mcp.AddTool(mcp.NewTool("calculate_tariff",
		mcp.WithDescription("Validate inputs and calculate the customs duty for one shipment line."),
		mcp.WithString("hts8", mcp.Required(), mcp.Description("8-digit HTS code")),
		mcp.WithNumber("itemValue", mcp.Required(), mcp.Description("Customs value in destination currency")),
		mcp.WithNumber("itemQuantity", mcp.Required(), mcp.Description("Integer quantity, at least 1")),
		mcp.WithString("originCountry", mcp.Required(), mcp.Description("ISO 3166-1 alpha-2 origin, e.g. CN")),
		mcp.WithString("countryOfArrival", mcp.Required(), mcp.Description("ISO 3166-1 alpha-2 destination, e.g. US")),
		mcp.WithString("modeOfTransport", mcp.Required(), mcp.Enum("air", "sea", "land")),
		mcp.WithString("entryDate", mcp.Required(), mcp.Description("YYYY-MM-DD")),
		mcp.WithString("loadingDate", mcp.Required(), mcp.Description("YYYY-MM-DD")),
	), s.calculateTariff)

	return s
}

func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// ServeSSE serves the SSE transport on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	sse := server.NewSSEServer(s.mcp)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sse.Shutdown(shutdownCtx); err != nil {
			slog.Warn("mcp_sse_shutdown_failed", "error", err)
		}
	}()
	return sse.Start(addr)
}

func (s *Server) findHTS8(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultText(""), nil
	}

	matches, err := s.quoter.SearchTariffs(ctx, query)
	if err != nil {
		slog.Error("mcp_find_hts8_failed", "query", query, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(matches) > s.searchLimit {
		matches = matches[:s.searchLimit]
	}

	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s\t%s", m.HTS8, m.Description)
		if m.MFNTextRate != "" {
			fmt.Fprintf(&b, "\t(MFN %s)", m.MFNTextRate)
		}
		b.WriteByte('\n')
	}
	return mcp.NewToolResultText(b.String()), nil
}

type calculateInputs struct {
	HTS8             string  `json:"hts8"`
	ItemValue        float64 `json:"itemValue"`
	ItemQuantity     int     `json:"itemQuantity"`
	OriginCountry    string  `json:"originCountry"`
	CountryOfArrival string  `json:"countryOfArrival"`
	ModeOfTransport  string  `json:"modeOfTransport"`
	EntryDate        string  `json:"entryDate"`
	LoadingDate      string  `json:"loadingDate"`
}

type calculateOutput struct {
	Inputs calculateInputs         `json:"inputs"`
	Result *domain.DutyQuoteResult `json:"result"`
}

func (s *Server) calculateTariff(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	in, err := readCalculateInputs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	slog.Info("mcp_calculate_tariff", "hts8", in.HTS8, "origin", in.OriginCountry, "arrival", in.CountryOfArrival)
	result, err := s.quoter.CalculateTariff(ctx, domain.DutyQuoteRequest{
		HTS8:           in.HTS8,
		ItemValue:      in.ItemValue,
		ItemQuantity:   float64(in.ItemQuantity),
		OriginCountry:  in.OriginCountry,
		ArrivalCountry: in.CountryOfArrival,
		TransportMode:  in.ModeOfTransport,
		EntryDate:      in.EntryDate,
		LoadingDate:    in.LoadingDate,
	})
	if err != nil {
		slog.Error("mcp_calculate_tariff_failed", "hts8", in.HTS8, "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, err := json.Marshal(calculateOutput{Inputs: in, Result: result})
	if err != nil {
		return nil, fmt.Errorf("encode tariff result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}

func readCalculateInputs(req mcp.CallToolRequest) (calculateInputs, error) {
	var in calculateInputs
	var err error

	if in.HTS8, err = requireNonBlank(req, "hts8"); err != nil {
		return in, err
	}
	if in.ItemValue, err = req.RequireFloat("itemValue"); err != nil {
		return in, err
	}
	if in.ItemValue < 0 {
		return in, fmt.Errorf("itemValue must not be negative")
	}
	quantity, err := req.RequireFloat("itemQuantity")
	if err != nil {
		return in, err
	}
	if quantity < 1 || quantity != math.Trunc(quantity) {
		return in, fmt.Errorf("itemQuantity must be an integer >= 1")
	}
	in.ItemQuantity = int(quantity)

	if in.OriginCountry, err = requireNonBlank(req, "originCountry"); err != nil {
		return in, err
	}
	if in.CountryOfArrival, err = requireNonBlank(req, "countryOfArrival"); err != nil {
		return in, err
	}
	if in.ModeOfTransport, err = requireNonBlank(req, "modeOfTransport"); err != nil {
		return in, err
	}
	in.ModeOfTransport = strings.ToLower(in.ModeOfTransport)
	if _, ok := transportModes[in.ModeOfTransport]; !ok {
		return in, fmt.Errorf("modeOfTransport must be one of: air, sea, land")
	}
	if in.EntryDate, err = requireDate(req, "entryDate"); err != nil {
		return in, err
	}
	if in.LoadingDate, err = requireDate(req, "loadingDate"); err != nil {
		return in, err
	}
	return in, nil
}

func requireNonBlank(req mcp.CallToolRequest, key string) (string, error) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", err
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return "", fmt.Errorf("%s must not be blank", key)
	}
	return v, nil
}

func requireDate(req mcp.CallToolRequest, key string) (string, error) {
	v, err := requireNonBlank(req, key)
	if err != nil {
		return "", err
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return "", fmt.Errorf("%s must be a date in YYYY-MM-DD format", key)
	}
	return v, nil
}
