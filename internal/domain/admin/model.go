package admin

import "time"

// Settings is the single-row application configuration edited by admins at
// runtime. SMTPPassword is write-only through the API.
type Settings struct {
	SMTPHost        string    `db:"smtp_host" json:"smtp_host"`
	SMTPPort        int       `db:"smtp_port" json:"smtp_port"`
	SMTPUsername    string    `db:"smtp_username" json:"smtp_username"`
	SMTPPassword    string    `db:"smtp_password" json:"-"`
	FromAddress     string    `db:"from_address" json:"from_address"`
	NotifyOnConfirm bool      `db:"notify_on_confirm" json:"notify_on_confirm"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// SettingsPatch carries partial updates; nil fields are left unchanged.
type SettingsPatch struct {
	SMTPHost        *string `json:"smtp_host,omitempty"`
	SMTPPort        *int    `json:"smtp_port,omitempty"`
	SMTPUsername    *string `json:"smtp_username,omitempty"`
	SMTPPassword    *string `json:"smtp_password,omitempty"`
	FromAddress     *string `json:"from_address,omitempty"`
	NotifyOnConfirm *bool   `json:"notify_on_confirm,omitempty"`
}
