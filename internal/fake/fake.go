// Package fake synthesizes column values from a ColumnSpec. Values are
// plausible-looking, not statistically meaningful.
package fake

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rowforge/rowforge/internal/schema"
)

const (
	defaultStringLen = 10
	maxIntValue      = 1_000_000_000
	maxDoubleValue   = 1_000_000.0
	dateRangeYears   = 40
)

const letters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Provider generates one value per ColumnSpec. Not safe for concurrent use;
// each worker owns its own Provider.
type Provider struct {
	rnd  *rand.Rand
	pool *stringPool
}

// NewProvider returns a Provider seeded deterministically from seed. Workers
// seed with their shard index so shards diverge.
func NewProvider(seed int64) *Provider {
	return &Provider{
		rnd:  rand.New(rand.NewSource(seed)),
		pool: newStringPool(1024),
	}
}

// Value produces one synthetic value for the column.
func (p *Provider) Value(spec schema.ColumnSpec) string {
	switch spec.DataType {
	case schema.TypeString:
		return p.stringValue(spec.Format)
	case schema.TypeNumeric:
		return p.numericValue(spec)
	case schema.TypeDate:
		return p.dateValue(spec.Format)
	default:
		return uuid.NewString()
	}
}

func (p *Provider) stringValue(format string) string {
	maxLen := defaultStringLen
	if n, err := strconv.Atoi(strings.TrimSpace(format)); err == nil && n > 0 {
		maxLen = n
	}

	// Every fourth string is served from the rotating cache once it has
	// entries of a usable length.
	if cached, ok := p.pool.maybeGet(maxLen); ok {
		return cached
	}

	length := 1 + p.rnd.Intn(maxLen)
	b := make([]byte, length)
	for i := range b {
		b[i] = letters[p.rnd.Intn(len(letters))]
	}
	s := string(b)
	p.pool.put(s)
	return s
}

func (p *Provider) numericValue(spec schema.ColumnSpec) string {
	if spec.IsDouble {
		return strconv.FormatFloat(p.rnd.Float64()*maxDoubleValue, 'f', 2, 64)
	}
	// IsInteger and untyped numerics both emit integers.
	return strconv.FormatInt(p.rnd.Int63n(maxIntValue), 10)
}

func (p *Provider) dateValue(format string) string {
	span := int64(dateRangeYears) * 365 * 24 * int64(time.Hour)
	t := time.Now().Add(-time.Duration(p.rnd.Int63n(span)))
	return t.Format(dateLayout(format))
}

// dateLayout converts a pattern like "yyyy-MM-dd HH:mm:ss" into a Go
// reference layout. Unknown runs pass through verbatim.
func dateLayout(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return "2006-01-02"
	}
	r := strings.NewReplacer(
		"yyyy", "2006",
		"yy", "06",
		"MM", "01",
		"dd", "02",
		"HH", "15",
		"mm", "04",
		"ss", "05",
	)
	return r.Replace(pattern)
}

// stringPool is a fixed-size rotating cache of previously generated strings.
// It trades repetition for allocation savings and makes no statistical
// guarantees.
type stringPool struct {
	entries []string
	next    int
	calls   int
}

func newStringPool(size int) *stringPool {
	return &stringPool{entries: make([]string, 0, size)}
}

// maybeGet returns a cached string no longer than maxLen on every fourth
// call, rotating through the cache.
func (sp *stringPool) maybeGet(maxLen int) (string, bool) {
	sp.calls++
	if len(sp.entries) == 0 || sp.calls%4 != 0 {
		return "", false
	}
	for i := 0; i < len(sp.entries); i++ {
		s := sp.entries[sp.next]
		sp.next = (sp.next + 1) % len(sp.entries)
		if len(s) <= maxLen {
			return s, true
		}
	}
	return "", false
}

func (sp *stringPool) put(s string) {
	if len(sp.entries) < cap(sp.entries) {
		sp.entries = append(sp.entries, s)
		return
	}
	sp.entries[sp.next] = s
	sp.next = (sp.next + 1) % len(sp.entries)
}
