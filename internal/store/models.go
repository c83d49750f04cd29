package store

import "time"

// ScanRecordRow is one persisted target record. Stage columns hold the display
// text; Payload holds the full record as JSON so it can be restored exactly.
type ScanRecordRow struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	RunID           string `gorm:"size:64;index" json:"run_id"`
	Target          string `gorm:"size:255;index" json:"target"`
	IsWebTarget     bool   `json:"is_web_target"`
	HostLookup      string `json:"host_lookup"`
	PortScan        string `json:"port_scan"`
	SMB             string `json:"smb"`
	FTP             string `json:"ftp"`
	DNSRecon        string `json:"dns_recon"`
	ExploitModules  string `json:"exploit_modules"`
	WebContent      string `json:"web_content"`
	Subdomains      string `json:"subdomains"`
	Robots          string `json:"robots"`
	Screenshot      string `json:"screenshot"`
	WordPress       string `json:"wordpress"`
	SecurityHeaders string `json:"security_headers"`
	Advice          string `json:"advice"`
	FailedStages    int    `json:"failed_stages"`
	Payload         string `json:"-"`

	ExtraCommands []ExtraCommandRow `gorm:"foreignKey:ScanRecordID;constraint:OnDelete:CASCADE" json:"extra_commands"`

	ScannedAt time.Time `gorm:"index" json:"scanned_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
	CreatedAt time.Time `json:"created_at"`
}

func (ScanRecordRow) TableName() string { return "scan_records" }

// ExtraCommandRow is the output of one extra command for a record.
type ExtraCommandRow struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	ScanRecordID uint   `gorm:"index" json:"scan_record_id"`
	Position     int    `json:"position"`
	Command      string `json:"command"`
	Status       string `gorm:"size:16" json:"status"`
	Output       string `json:"output"`
}

func (ExtraCommandRow) TableName() string { return "extra_commands" }
