package symex_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/symex"
	"github.com/google/go-cmp/cmp"
)

func TestCoverage(t *testing.T) {
	c := symex.NewCoverage()
	c.Record("main", 0, 1, time.Millisecond)
	c.Record("main", 0, 1, time.Millisecond)
	c.Record("main", 0, 3, 0)
	c.Record("f", 2, 3, 0)

	if got, exp := c.Count("main", 0, 1), 2; got != exp {
		t.Fatalf("Count()=%d, expected %d", got, exp)
	} else if got, exp := c.Count("main", 1, 2), 0; got != exp {
		t.Fatalf("Count()=%d, expected %d", got, exp)
	} else if got, exp := c.Executed("main", 0), 3; got != exp {
		t.Fatalf("Executed()=%d, expected %d", got, exp)
	} else if got, exp := c.Executed("f", 0), 0; got != exp {
		t.Fatalf("Executed()=%d, expected %d", got, exp)
	} else if got, exp := c.Total(), 4; got != exp {
		t.Fatalf("Total()=%d, expected %d", got, exp)
	}

	var keys []string
	for _, entry := range c.Entries() {
		keys = append(keys, fmt.Sprintf("%s:%d->%d", entry.Function, entry.From, entry.To))
	}
	if diff := cmp.Diff(keys, []string{"f:2->3", "main:0->1", "main:0->3"}); diff != "" {
		t.Fatal(diff)
	}

	if got, exp := c.Entries()[1].Duration, 2*time.Millisecond; got != exp {
		t.Fatalf("Duration=%s, expected %s", got, exp)
	}

	t.Run("WriteTo", func(t *testing.T) {
		var buf bytes.Buffer
		n, err := c.WriteTo(&buf)
		if err != nil {
			t.Fatal(err)
		} else if n != int64(buf.Len()) {
			t.Fatalf("WriteTo()=%d, expected %d", n, buf.Len())
		}

		out := buf.String()
		if !strings.Contains(out, "main") || !strings.Contains(out, "2ms") {
			t.Fatalf("unexpected output:\n%s", out)
		} else if !strings.Contains(strings.ToUpper(out), "TOTAL") {
			t.Fatalf("missing footer:\n%s", out)
		}
	})
}
