// Package settings is the category+key configuration store: typed values,
// optional encryption at rest, schema validation on write and seeding that
// never overwrites.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/ledgerline/propops/internal/datastore/entities"
	"github.com/ledgerline/propops/internal/datastore/repository"
	"github.com/ledgerline/propops/internal/errors"
	"github.com/ledgerline/propops/internal/logger"
	"github.com/ledgerline/propops/internal/observability"
	"github.com/ledgerline/propops/internal/secrets"
)

// Reader is the read side handed to components that consume settings.
type Reader interface {
	Get(ctx context.Context, category, key string, def Value) Value
	GetString(ctx context.Context, category, key, def string) (string, error)
	GetInt(ctx context.Context, category, key string, def int) (int, error)
	GetFloat(ctx context.Context, category, key string, def float64) (float64, error)
	GetBool(ctx context.Context, category, key string, def bool) (bool, error)
	GetList(ctx context.Context, category, key string, def []string) ([]string, error)
}

// Entry is a stored setting as shown to admins. Secret values are never
// included; HasSecret reports whether one is set.
type Entry struct {
	Category    string    `json:"category" yaml:"category"`
	Key         string    `json:"key" yaml:"key"`
	Value       Value     `json:"value" yaml:"value"`
	Encrypted   bool      `json:"encrypted" yaml:"encrypted"`
	HasSecret   bool      `json:"has_secret" yaml:"has_secret"`
	Description string    `json:"description" yaml:"description"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// SeedResult counts what a seeding run did.
type SeedResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// Store implements Reader plus the write and seeding operations.
type Store struct {
	repo    repository.SettingRepository
	cipher  *secrets.Cipher
	cache   Cache
	metrics *observability.Metrics
	log     logger.Logger

	// fillMu orders cache fills against invalidations. A fill is dropped when
	// any write invalidated the cache after the fill began reading.
	fillMu        sync.Mutex
	invalidations uint64
}

var _ Reader = (*Store)(nil)

// NewStore wires the store. cipher, cache and metrics may be nil; without a
// cipher every encrypted read and write fails with secrets.ErrNoKey.
func NewStore(repo repository.SettingRepository, cipher *secrets.Cipher, cache Cache, metrics *observability.Metrics, log logger.Logger) *Store {
	if cache == nil {
		cache = nopCache{}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Store{
		repo:    repo,
		cipher:  cipher,
		cache:   cache,
		metrics: metrics,
		log:     log.Module("settings"),
	}
}

// Lookup returns the stored value, decrypting it when needed. An absent key
// is a NotFoundError.
func (s *Store) Lookup(ctx context.Context, category, key string) (Value, error) {
	row, err := s.load(ctx, category, key)
	if err != nil {
		return Value{}, err
	}
	return s.decode(row)
}

// Get returns the stored value, or def when the key is absent, null or
// unreadable.
func (s *Store) Get(ctx context.Context, category, key string, def Value) Value {
	v, err := s.Lookup(ctx, category, key)
	if err != nil {
		if !errors.Is(err, errors.ErrNotFound) {
			s.log.Warn("setting read failed, using default",
				logger.String("category", category),
				logger.String("key", key),
				logger.Error(err))
		}
		return def
	}
	if v.IsNull() {
		return def
	}
	return v
}

func (s *Store) GetString(ctx context.Context, category, key, def string) (string, error) {
	return typed(ctx, s, category, key, def, string(KindString), Value.AsString)
}

func (s *Store) GetInt(ctx context.Context, category, key string, def int) (int, error) {
	return typed(ctx, s, category, key, def, "integer", Value.AsInt)
}

func (s *Store) GetFloat(ctx context.Context, category, key string, def float64) (float64, error) {
	return typed(ctx, s, category, key, def, string(KindNumber), Value.AsNumber)
}

func (s *Store) GetBool(ctx context.Context, category, key string, def bool) (bool, error) {
	return typed(ctx, s, category, key, def, string(KindBool), Value.AsBool)
}

func (s *Store) GetList(ctx context.Context, category, key string, def []string) ([]string, error) {
	return typed(ctx, s, category, key, def, string(KindList), Value.AsList)
}

// typed reads a value and converts it. Absent and null values yield def; a
// value of another kind is a ConfigTypeError.
func typed[T any](ctx context.Context, s *Store, category, key string, def T, want string, conv func(Value) (T, bool)) (T, error) {
	v, err := s.Lookup(ctx, category, key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return def, nil
		}
		return def, err
	}
	if v.IsNull() {
		return def, nil
	}
	out, ok := conv(v)
	if !ok {
		return def, &errors.ConfigTypeError{Category: category, Key: key, Want: want, Got: string(v.Kind())}
	}
	return out, nil
}

// Set validates and upserts a value. Keys marked secret in the schema are
// always encrypted. A non-empty description replaces the stored one on every
// write; an empty description leaves it unchanged.
func (s *Store) Set(ctx context.Context, category, key string, v Value, encrypted bool, description string) error {
	if err := Validate(category, key, v); err != nil {
		s.metrics.SettingWritten(category, "rejected")
		return err
	}
	if spec, ok := SpecFor(category, key); ok && spec.Secret {
		encrypted = true
	}
	raw, err := s.encode(category, key, v, encrypted)
	if err != nil {
		return err
	}

	outcome := ""
	err = retry.Do(
		func() error {
			existing, err := s.repo.Get(ctx, category, key)
			if errors.Is(err, repository.ErrSettingNotFound) {
				outcome = "created"
				return s.repo.Create(ctx, &entities.Setting{
					Category:    category,
					Key:         key,
					Value:       raw,
					Encrypted:   encrypted,
					Description: description,
				})
			}
			if err != nil {
				return err
			}
			existing.Value = raw
			existing.Encrypted = encrypted
			if description != "" {
				existing.Description = description
			}
			outcome = "updated"
			return s.repo.Update(ctx, existing)
		},
		// A concurrent writer created the row first; the next attempt updates it.
		retry.RetryIf(func(err error) bool { return errors.Is(err, repository.ErrUniqueViolation) }),
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	s.invalidate(ctx, cacheKey(category, key))
	if err != nil {
		return fmt.Errorf("failed to save setting %s.%s: %w", category, key, err)
	}

	s.metrics.SettingWritten(category, outcome)
	s.log.Info("setting saved",
		logger.String("category", category),
		logger.String("key", key),
		logger.Bool("encrypted", encrypted),
		logger.String("outcome", outcome))
	return nil
}

// SeedDefault creates the setting only when absent and reports whether it did.
// Losing a create race to another seeder counts as a skip.
func (s *Store) SeedDefault(ctx context.Context, category, key string, v Value, description string) (bool, error) {
	if err := Validate(category, key, v); err != nil {
		return false, err
	}
	spec, _ := SpecFor(category, key)
	raw, err := s.encode(category, key, v, spec.Secret)
	if err != nil {
		return false, err
	}

	created := false
	err = retry.Do(
		func() error {
			var err error
			created, err = s.repo.CreateIfAbsent(ctx, &entities.Setting{
				Category:    category,
				Key:         key,
				Value:       raw,
				Encrypted:   spec.Secret,
				Description: description,
			})
			return err
		},
		retry.RetryIf(func(err error) bool { return errors.Is(err, repository.ErrUniqueViolation) }),
		retry.Attempts(3),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return false, fmt.Errorf("failed to seed setting %s.%s: %w", category, key, err)
	}
	if created {
		s.invalidate(ctx, cacheKey(category, key))
		s.metrics.SettingWritten(category, "seeded")
	} else {
		s.metrics.SettingWritten(category, "skipped")
	}
	return created, nil
}

// SeedDefaults seeds every entry, continuing past failures. It is safe to run
// on every start.
func (s *Store) SeedDefaults(ctx context.Context, defaults []Default) (SeedResult, error) {
	var res SeedResult
	var errs []error
	for _, d := range defaults {
		created, err := s.SeedDefault(ctx, d.Category, d.Key, d.Value, d.Description)
		switch {
		case err != nil:
			errs = append(errs, err)
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}
	s.log.Info("settings seeded", logger.Int("created", res.Created), logger.Int("skipped", res.Skipped))
	return res, errors.Join(errs...)
}

// HasSecret reports whether an encrypted, non-null value is stored. It never
// decrypts.
func (s *Store) HasSecret(ctx context.Context, category, key string) (bool, error) {
	row, err := s.load(ctx, category, key)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.Encrypted && !isJSONNull(row.Value), nil
}

// Category returns the values of one category keyed by setting key. Secrets
// are reported as null.
func (s *Store) Category(ctx context.Context, category string) (map[string]Value, error) {
	entries, err := s.Entries(ctx, category)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Value, len(entries))
	for i := range entries {
		out[entries[i].Key] = entries[i].Value
	}
	return out, nil
}

// Entries lists one category for display. An unknown category with no stored
// rows is a NotFoundError.
func (s *Store) Entries(ctx context.Context, category string) ([]Entry, error) {
	rows, err := s.repo.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 && !KnownCategory(category) {
		return nil, &errors.NotFoundError{Entity: "settings category", ID: category}
	}
	return s.entries(rows)
}

// Export lists every stored setting ordered by category, secrets redacted.
func (s *Store) Export(ctx context.Context) ([]Entry, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.entries(rows)
}

func (s *Store) entries(rows []entities.Setting) ([]Entry, error) {
	out := make([]Entry, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		e := Entry{
			Category:    row.Category,
			Key:         row.Key,
			Encrypted:   row.Encrypted,
			Description: row.Description,
			UpdatedAt:   row.UpdatedAt,
		}
		if row.Encrypted {
			e.Value = Null()
			e.HasSecret = !isJSONNull(row.Value)
		} else {
			v, err := s.decode(row)
			if err != nil {
				return nil, err
			}
			e.Value = v
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Store) load(ctx context.Context, category, key string) (*entities.Setting, error) {
	ck := cacheKey(category, key)
	if row, ok := s.cache.Get(ctx, ck); ok {
		return row, nil
	}
	s.fillMu.Lock()
	seen := s.invalidations
	s.fillMu.Unlock()

	row, err := s.repo.Get(ctx, category, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return nil, &errors.NotFoundError{Entity: "setting", ID: ck}
		}
		return nil, err
	}

	s.fillMu.Lock()
	if s.invalidations == seen {
		s.cache.Set(ctx, ck, row)
	}
	s.fillMu.Unlock()
	return row, nil
}

func (s *Store) invalidate(ctx context.Context, ck string) {
	s.fillMu.Lock()
	s.invalidations++
	s.cache.Delete(ctx, ck)
	s.fillMu.Unlock()
}

// encode produces the stored JSON. Encrypted non-null values are stored as a
// JSON string holding the sealed plaintext JSON.
func (s *Store) encode(category, key string, v Value, encrypted bool) (entities.JSONText, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode setting %s.%s: %w", category, key, err)
	}
	if !encrypted || v.IsNull() {
		return entities.JSONText(plain), nil
	}
	sealed, err := s.cipher.Encrypt(plain, cacheKey(category, key))
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt setting %s.%s: %w", category, key, err)
	}
	out, err := json.Marshal(sealed)
	if err != nil {
		return nil, err
	}
	return entities.JSONText(out), nil
}

func (s *Store) decode(row *entities.Setting) (Value, error) {
	raw := []byte(row.Value)
	if row.Encrypted && !isJSONNull(row.Value) {
		var sealed string
		if err := json.Unmarshal(raw, &sealed); err != nil {
			return Value{}, fmt.Errorf("setting %s.%s: malformed ciphertext: %w", row.Category, row.Key, err)
		}
		plain, err := s.cipher.Decrypt(sealed, cacheKey(row.Category, row.Key))
		if err != nil {
			return Value{}, fmt.Errorf("failed to decrypt setting %s.%s: %w", row.Category, row.Key, err)
		}
		raw = plain
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil {
		return Value{}, fmt.Errorf("setting %s.%s: %w", row.Category, row.Key, err)
	}
	return v, nil
}

func isJSONNull(raw entities.JSONText) bool {
	return len(raw) == 0 || string(raw) == "null"
}
