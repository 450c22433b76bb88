package export

import (
	"fmt"
	"strings"

	"subbrute/internal/model"
	"subbrute/internal/utils"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SubdomainRecord is the persisted form of one accepted name.
type SubdomainRecord struct {
	gorm.Model

	Domain    string `gorm:"index"`
	Subdomain string `gorm:"index"`
	IP        string
	TTL       string
	CNAME     string
	Times     string
	Resolver  string
	Reason    string
}

// SQLiteExporter persists accepted names into a local sqlite database so
// results survive across runs and can be queried later.
type SQLiteExporter struct {
	db *gorm.DB
}

func NewSQLiteExporter(path string) (*SQLiteExporter, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	if err := db.AutoMigrate(&SubdomainRecord{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite schema: %w", err)
	}
	return &SQLiteExporter{db: db}, nil
}

func (e *SQLiteExporter) Export(domain string, subdomains []string, infos map[string]model.SubdomainInfo) error {
	if len(subdomains) == 0 {
		return nil
	}
	records := make([]SubdomainRecord, 0, len(subdomains))
	for _, name := range subdomains {
		info := infos[name]
		records = append(records, SubdomainRecord{
			Domain:    domain,
			Subdomain: name,
			IP:        strings.Join(info.IP, ";"),
			TTL:       joinInts(info.TTL),
			CNAME:     strings.Join(info.CNAME, ";"),
			Times:     joinInts(info.Times),
			Resolver:  info.Resolver,
			Reason:    string(info.Reason),
		})
	}
	if err := e.db.Create(&records).Error; err != nil {
		return fmt.Errorf("saving subdomain records: %w", err)
	}
	utils.Log.Info("sqlite results saved",
		utils.Field("domain", domain), utils.Field("count", len(records)))
	return nil
}
