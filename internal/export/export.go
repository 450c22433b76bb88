package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"subbrute/internal/model"
	"subbrute/internal/utils"
)

// Exporter receives the accepted names and their info at the end of each
// domain's pipeline. Implementations decide format and destination.
type Exporter interface {
	Export(domain string, subdomains []string, infos map[string]model.SubdomainInfo) error
}

// CSVExporter writes one row per accepted name into <dir>/<domain>_brute.csv.
type CSVExporter struct {
	Dir string
}

func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{Dir: dir}
}

func (e *CSVExporter) Export(domain string, subdomains []string, infos map[string]model.SubdomainInfo) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(e.Dir, domain+"_brute.csv")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv result file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()
	if err := writer.Write([]string{"subdomain", "ip", "ttl", "cname", "public", "times", "resolver", "reason"}); err != nil {
		return err
	}
	for _, name := range subdomains {
		info := infos[name]
		row := []string{
			name,
			strings.Join(info.IP, ";"),
			joinInts(info.TTL),
			strings.Join(info.CNAME, ";"),
			joinBools(info.Public),
			joinInts(info.Times),
			info.Resolver,
			string(info.Reason),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	utils.Log.Info("csv results written",
		utils.Field("path", path), utils.Field("count", len(subdomains)))
	return nil
}

// JSONExporter writes one JSON object per accepted name into
// <dir>/<domain>_brute.json, mirroring the resolver's line-oriented shape.
type JSONExporter struct {
	Dir string
}

func NewJSONExporter(dir string) *JSONExporter {
	return &JSONExporter{Dir: dir}
}

func (e *JSONExporter) Export(domain string, subdomains []string, infos map[string]model.SubdomainInfo) error {
	if err := os.MkdirAll(e.Dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(e.Dir, domain+"_brute.json")
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating json result file: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	enc := json.NewEncoder(file)
	for _, name := range subdomains {
		entry := struct {
			Subdomain string              `json:"subdomain"`
			Info      model.SubdomainInfo `json:"info"`
		}{Subdomain: name, Info: infos[name]}
		if err := enc.Encode(entry); err != nil {
			return err
		}
	}
	utils.Log.Info("json results written",
		utils.Field("path", path), utils.Field("count", len(subdomains)))
	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ";")
}

func joinBools(values []bool) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatBool(v)
	}
	return strings.Join(parts, ";")
}
