package settings

import (
	"fmt"
	"net/mail"
	"net/url"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/ledgerline/propops/internal/errors"
)

// Spec describes one known setting. Values are checked against it on every
// write, never at read time.
type Spec struct {
	Kind   Kind
	Secret bool
	// Check runs after the kind matched. It returns a message, not an error.
	Check func(Value) string
}

// schema lists every category and the keys with a known shape. Writes to an
// unknown category are rejected; unknown keys in a known category are stored
// as given.
var schema = map[string]map[string]Spec{
	"sync": {
		"enabled":                      {Kind: KindBool},
		"full_sync_time":               {Kind: KindString, Check: clockTime},
		"incremental_interval_minutes": {Kind: KindNumber, Check: positiveInt},
		"batch_size":                   {Kind: KindNumber, Check: intRange(1, 1000)},
		"resources":                    {Kind: KindList, Check: oneOfEach(syncResources...)},
	},
	"business_hours": {
		"enabled":    {Kind: KindBool},
		"timezone":   {Kind: KindString, Check: timezone},
		"start_time": {Kind: KindString, Check: clockTime},
		"end_time":   {Kind: KindString, Check: clockTime},
		"days":       {Kind: KindList, Check: oneOfEach(weekdays...)},
	},
	"rate_limit": {
		"requests_per_minute": {Kind: KindNumber, Check: positiveInt},
		"max_retries":         {Kind: KindNumber, Check: intRange(0, 20)},
		"backoff_seconds":     {Kind: KindNumber, Check: positiveNumber},
	},
	"alerts": {
		"enabled":             {Kind: KindBool},
		"failure_threshold":   {Kind: KindNumber, Check: positiveInt},
		"notification_emails": {Kind: KindList, Check: emails},
	},
	"features": {
		"utility_formatting":   {Kind: KindBool},
		"unmapped_suggestions": {Kind: KindBool},
		"alert_rules":          {Kind: KindBool},
	},
	"appfolio": {
		"api_base_url":  {Kind: KindString, Check: httpURL},
		"database_name": {Kind: KindString},
		"client_id":     {Kind: KindString},
		"client_secret": {Kind: KindString, Secret: true},
	},
}

var (
	syncResources = []string{"properties", "units", "tenants", "leases", "expenses", "vendors", "work_orders"}
	weekdays      = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}
)

// Categories returns the known categories in sorted order.
func Categories() []string {
	out := make([]string, 0, len(schema))
	for c := range schema {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// KnownCategory reports whether category is part of the schema.
func KnownCategory(category string) bool {
	_, ok := schema[category]
	return ok
}

// SpecFor returns the spec for a known key.
func SpecFor(category, key string) (Spec, bool) {
	spec, ok := schema[category][key]
	return spec, ok
}

// Validate checks v against the schema. Null is accepted for every key and
// clears the value.
func Validate(category, key string, v Value) error {
	keys, ok := schema[category]
	if !ok {
		return errors.NewValidation("category", "unknown settings category %q", category)
	}
	if key == "" {
		return errors.NewValidation("key", "is required")
	}
	spec, ok := keys[key]
	if !ok || v.IsNull() {
		return nil
	}
	field := category + "." + key
	if v.Kind() != spec.Kind {
		return errors.NewValidation(field, "must be a %s, got %s", spec.Kind, v.Kind())
	}
	if spec.Check != nil {
		if msg := spec.Check(v); msg != "" {
			return &errors.ValidationError{Field: field, Message: msg}
		}
	}
	return nil
}

func clockTime(v Value) string {
	s, _ := v.AsString()
	if _, err := time.Parse("15:04", s); err != nil || len(s) != 5 {
		return "must be a time of day in HH:MM form"
	}
	return ""
}

func timezone(v Value) string {
	s, _ := v.AsString()
	if s == "" {
		return "must name an IANA time zone"
	}
	if _, err := time.LoadLocation(s); err != nil {
		return fmt.Sprintf("unknown time zone %q", s)
	}
	return ""
}

func httpURL(v Value) string {
	s, _ := v.AsString()
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "must be an absolute http(s) URL"
	}
	return ""
}

func positiveInt(v Value) string {
	if n, ok := v.AsInt(); !ok || n <= 0 {
		return "must be a positive whole number"
	}
	return ""
}

func positiveNumber(v Value) string {
	if n, _ := v.AsNumber(); n <= 0 {
		return "must be greater than zero"
	}
	return ""
}

func intRange(low, high int) func(Value) string {
	return func(v Value) string {
		n, ok := v.AsInt()
		if !ok || n < low || n > high {
			return fmt.Sprintf("must be a whole number between %d and %d", low, high)
		}
		return ""
	}
}

func oneOfEach(allowed ...string) func(Value) string {
	return func(v Value) string {
		items, _ := v.AsList()
		for _, item := range items {
			if !slices.Contains(allowed, item) {
				return fmt.Sprintf("%q is not one of %s", item, strings.Join(allowed, ", "))
			}
		}
		return ""
	}
}

func emails(v Value) string {
	items, _ := v.AsList()
	for _, item := range items {
		if _, err := mail.ParseAddress(item); err != nil {
			return fmt.Sprintf("%q is not a valid email address", item)
		}
	}
	return ""
}
