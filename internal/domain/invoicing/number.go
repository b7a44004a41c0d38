package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NumberGenerator produces candidate invoice numbers. Uniqueness is checked by the
// caller against the repository; a generator only has to make collisions unlikely.
type NumberGenerator interface {
	Generate(now time.Time) string
}

// NumberGeneratorFunc adapts a function to NumberGenerator
type NumberGeneratorFunc func(now time.Time) string

// Generate calls f(now)
func (f NumberGeneratorFunc) Generate(now time.Time) string {
	return f(now)
}

// TimestampNumberGenerator yields INV-<yyyymmdd>-<hhmmss>-<rand4>
type TimestampNumberGenerator struct{}

// Generate implements NumberGenerator
func (TimestampNumberGenerator) Generate(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:4])
	return fmt.Sprintf("INV-%s-%s-%s", now.Format("20060102"), now.Format("150405"), suffix)
}
