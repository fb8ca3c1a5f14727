// Package settings persists operator configuration (Resy credentials and
// payment method) as key-value rows and exposes a typed view of the keys the
// monitor reads.
package settings

import (
	"context"
	"strconv"

	"github.com/example/resy-sniper/internal/db"
	"github.com/example/resy-sniper/internal/resy"
)

const (
	KeyAPIKey          = "api_key"
	KeyAuthToken       = "auth_token"
	KeyPaymentMethodID = "payment_method_id"
)

// Settings is the typed view of the store. Zero values mean "not configured":
// an empty APIKey disables scanning entirely, an empty AuthToken disables
// sniping, a zero PaymentMethodID lets Resy pick the account default.
type Settings struct {
	APIKey          string
	AuthToken       string
	PaymentMethodID int
}

func (s Settings) Credentials() resy.Credentials {
	return resy.Credentials{APIKey: s.APIKey, AuthToken: s.AuthToken}
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

// Load reads the typed settings. Missing keys come back as zero values.
func (r *Repo) Load(ctx context.Context) (Settings, error) {
	all, err := r.All(ctx)
	if err != nil {
		return Settings{}, err
	}
	return FromMap(all), nil
}

// All returns every stored key, including ones the core does not read; the
// HTTP surface round-trips them.
func (r *Repo) All(ctx context.Context) (map[string]string, error) {
	rows, err := r.db.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (r *Repo) Set(ctx context.Context, key, value string) error {
	return r.db.Exec(ctx, `
INSERT INTO settings(key, value) VALUES ($1,$2)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value`, key, value)
}

func FromMap(m map[string]string) Settings {
	s := Settings{
		APIKey:    m[KeyAPIKey],
		AuthToken: m[KeyAuthToken],
	}
	if v := m[KeyPaymentMethodID]; v != "" {
		s.PaymentMethodID, _ = strconv.Atoi(v)
	}
	return s
}
