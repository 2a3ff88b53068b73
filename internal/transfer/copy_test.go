package transfer

import (
	"bytes"
	"strings"
	"testing"
)

func TestCopyReportsProgress(t *testing.T) {
	payload := strings.Repeat("x", 300*1024)
	var last int64
	calls := 0

	var out bytes.Buffer
	n, err := Copy(&out, strings.NewReader(payload), int64(len(payload)), func(done, total int64) {
		if total != int64(len(payload)) {
			t.Fatalf("total = %d", total)
		}
		last = done
		calls++
	})
	if err != nil || n != int64(len(payload)) {
		t.Fatalf("Copy() = (%d, %v)", n, err)
	}
	if last != n || calls < 2 {
		t.Fatalf("last=%d calls=%d, want final report and intermediate ones", last, calls)
	}
	if out.Len() != len(payload) {
		t.Fatalf("copied %d bytes", out.Len())
	}
}

func TestCopyWithoutCallback(t *testing.T) {
	var out bytes.Buffer
	n, err := Copy(&out, strings.NewReader("abc"), 3, nil)
	if err != nil || n != 3 || out.String() != "abc" {
		t.Fatalf("Copy() = (%d, %v, %q)", n, err, out.String())
	}
}
