package cache

import (
	"testing"
	"time"

	"github.com/smallbiznis/rfacto/internal/clock"
	"github.com/smallbiznis/rfacto/internal/config"
)

func TestTTLCacheExpiresEntries(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	c := NewTTLCacheWithClock[string, int](clk)

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %v %v", v, ok)
	}

	clk.Advance(time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to expire")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatalf("expected b to never expire, got %v %v", v, ok)
	}
}

func TestTaxRateCacheRemembersMisses(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	holder := config.NewStaticRuntimeConfigHolder(config.RuntimeConfig{TaxCacheTTL: 30 * time.Second})
	c := newTaxRateCacheWithStore(NewTTLCacheWithClock[string, taxRateLookup](clk), holder)

	c.Set(" qc ", 0.14975, true)
	c.Set("ZZ", 0, false)

	rate, found, ok := c.Get("QC")
	if !ok || !found || rate != 0.14975 {
		t.Fatalf("expected cached QC rate, got %v %v %v", rate, found, ok)
	}
	if _, found, ok := c.Get("zz"); !ok || found {
		t.Fatalf("expected cached miss for ZZ, got found=%v ok=%v", found, ok)
	}

	clk.Advance(31 * time.Second)
	if _, _, ok := c.Get("QC"); ok {
		t.Fatalf("expected QC to expire after runtime TTL")
	}

	c.Set("ON", 0.13, true)
	c.Invalidate()
	if _, _, ok := c.Get("ON"); ok {
		t.Fatalf("expected invalidate to purge entries")
	}
}
