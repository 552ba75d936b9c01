package ledger

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/loan-ledger/pkg/apperr"
	"github.com/shunichi-ikebuchi/loan-ledger/pkg/workbook"
)

//go:embed banks.yaml
var defaultBanks []byte

// BankMapping routes a payment method to a cashbook column.
type BankMapping struct {
	Name    string   `yaml:"name"`
	Column  string   `yaml:"column"`
	Aliases []string `yaml:"aliases"`
}

// BankRoutingConfig is the YAML layout of a routing table.
type BankRoutingConfig struct {
	Banks []BankMapping `yaml:"banks"`
}

// BankRouter maps bank names to cashbook columns.
type BankRouter struct {
	columns map[string]int
	names   []string
}

// DefaultBankRouter returns the built-in table: HNB -> I, Peoples Bank -> H,
// Cash in Hand -> G.
func DefaultBankRouter() *BankRouter {
	r, err := ParseBankRouter(defaultBanks)
	if err != nil {
		panic(fmt.Sprintf("embedded bank table: %v", err))
	}
	return r
}

// LoadBankRouter reads a routing table from a YAML file. An empty path
// yields the default table.
func LoadBankRouter(path string) (*BankRouter, error) {
	if path == "" {
		return DefaultBankRouter(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bank routing file: %w", err)
	}
	return ParseBankRouter(data)
}

// ParseBankRouter builds a router from YAML.
func ParseBankRouter(data []byte) (*BankRouter, error) {
	var cfg BankRoutingConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(cfg.Banks) == 0 {
		return nil, fmt.Errorf("bank routing table is empty")
	}

	r := &BankRouter{columns: make(map[string]int)}
	for _, b := range cfg.Banks {
		col, err := workbook.ColumnIndex(b.Column)
		if err != nil {
			return nil, fmt.Errorf("bank %q: %w", b.Name, err)
		}
		if col < workbook.ColG || col > workbook.ColI {
			return nil, fmt.Errorf("bank %q: column %s is outside G..I", b.Name, b.Column)
		}
		r.names = append(r.names, b.Name)
		for _, n := range append([]string{b.Name}, b.Aliases...) {
			r.columns[normalizeBank(n)] = col
		}
	}
	sort.Strings(r.names)
	return r, nil
}

// Column returns the cashbook column for bank.
func (r *BankRouter) Column(bank string) (int, error) {
	if col, ok := r.columns[normalizeBank(bank)]; ok {
		return col, nil
	}
	return 0, apperr.New(apperr.InvalidInput, "ledger.bank", "unknown bank %q (expected one of %s)", bank, strings.Join(r.names, ", "))
}

// Names lists the canonical bank names.
func (r *BankRouter) Names() []string {
	return append([]string(nil), r.names...)
}

func normalizeBank(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
