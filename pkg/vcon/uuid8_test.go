package vcon

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUUID8DomainName(t *testing.T) {
	now := time.Date(2024, 10, 20, 15, 2, 55, 490850000, time.UTC)

	t.Run("version and variant", func(t *testing.T) {
		u := UUID8DomainName("test.com", now)
		assert.Equal(t, uuid.Version(8), u.Version())
		assert.Equal(t, uuid.RFC4122, u.Variant())
		assert.Equal(t, byte('8'), u.String()[14])
	})

	t.Run("pure over its inputs", func(t *testing.T) {
		assert.Equal(t, UUID8DomainName("test.com", now), UUID8DomainName("test.com", now))
		assert.NotEqual(t, UUID8DomainName("test.com", now), UUID8DomainName("other.com", now))
		assert.NotEqual(t, UUID8DomainName("test.com", now), UUID8DomainName("test.com", now.Add(time.Millisecond)))
	})

	t.Run("domain only affects the tail", func(t *testing.T) {
		a := UUID8DomainName("test.com", now)
		b := UUID8DomainName("other.com", now)
		assert.Equal(t, a[:8], b[:8])
	})

	t.Run("sorts by time", func(t *testing.T) {
		earlier := UUID8DomainName("test.com", now).String()
		later := UUID8DomainName("test.com", now.Add(time.Second)).String()
		assert.Less(t, earlier, later)
	})

	t.Run("timestamp prefix", func(t *testing.T) {
		u := UUID8DomainName("test.com", now)
		assert.Equal(t, "0192aa73-e702", u.String()[:13])
	})
}
