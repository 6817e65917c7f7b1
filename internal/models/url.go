package models

import (
	"time"

	"github.com/google/uuid"
)

// ShortURL короткая ссылка.
type ShortURL struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	OriginalURL   string     `db:"original_url" json:"original_url"`
	ShortCode     string     `db:"short_code" json:"short_code"`
	Title         *string    `db:"title" json:"title,omitempty"`
	IsActive      bool       `db:"is_active" json:"is_active"`
	ExpiresAt     *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	MaxClicks     *int       `db:"max_clicks" json:"max_clicks,omitempty"`
	ClickCount    int        `db:"click_count" json:"click_count"`
	LastClickedAt *time.Time `db:"last_clicked_at" json:"last_clicked_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`

	ShortLink string `db:"-" json:"short_link,omitempty"`
}

// URLClick переход по короткой ссылке.
type URLClick struct {
	ID        uuid.UUID `db:"id" json:"id"`
	URLID     uuid.UUID `db:"url_id" json:"url_id"`
	Referrer  *string   `db:"referrer" json:"referrer,omitempty"`
	UserAgent *string   `db:"user_agent" json:"user_agent,omitempty"`
	IPHash    *string   `db:"ip_hash" json:"ip_hash,omitempty"`
	Device    string    `db:"device" json:"device"`
	Country   *string   `db:"country" json:"country,omitempty"`
	ClickedAt time.Time `db:"clicked_at" json:"clicked_at"`
}

// URLRedirect правило условного перенаправления.
type URLRedirect struct {
	ID             uuid.UUID `db:"id" json:"id"`
	URLID          uuid.UUID `db:"url_id" json:"url_id"`
	ConditionType  string    `db:"condition_type" json:"condition_type"`
	ConditionValue string    `db:"condition_value" json:"condition_value"`
	TargetURL      string    `db:"target_url" json:"target_url"`
	Priority       int       `db:"priority" json:"priority"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Условия правил перенаправления.
const (
	RedirectByDevice   = "device"
	RedirectByCountry  = "country"
	RedirectByReferrer = "referrer"
)

// Типы устройств.
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceBot     = "bot"
)

// ClickMeta данные запроса, по которому разрешается ссылка.
type ClickMeta struct {
	Referrer  string
	UserAgent string
	IP        string
	Country   string
}

// CountBucket пара значение-количество для статистики.
type CountBucket struct {
	Value string `db:"value" json:"value"`
	Count int    `db:"count" json:"count"`
}

// DailyClicks число переходов за день.
type DailyClicks struct {
	Day   time.Time `db:"day" json:"day"`
	Count int       `db:"count" json:"count"`
}

// ClickStats статистика переходов.
type ClickStats struct {
	TotalClicks  int           `json:"total_clicks"`
	UniqueIPs    int           `json:"unique_visitors"`
	ByDay        []DailyClicks `json:"by_day"`
	ByDevice     []CountBucket `json:"by_device"`
	TopReferrers []CountBucket `json:"top_referrers"`
}
