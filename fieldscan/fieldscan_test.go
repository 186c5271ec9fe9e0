package fieldscan_test

import (
	"testing"

	"github.com/m-lab/audit-info/fieldscan"
)

func scanDefault(t *testing.T, body string) (fieldscan.FieldMap, bool) {
	t.Helper()
	dest := fieldscan.NewFieldMap()
	errored := fieldscan.ScanDefault([]byte(body), &dest)
	return dest, errored
}

func mustValue(t *testing.T, dest fieldscan.FieldMap, body, key string) string {
	t.Helper()
	span, ok := dest.Get(key)
	if !ok {
		t.Fatalf("missing field %q", key)
	}
	return span.Value([]byte(body))
}

func TestScanDefaultBasic(t *testing.T) {
	body := `arch=c000003e syscall=59 success=yes exit=0 a0=55d3d6d trash=ignored`
	dest, errored := scanDefault(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	want := map[string]string{
		"arch":    "c000003e",
		"syscall": "59",
		"success": "yes",
		"exit":    "0",
		"a0":      "55d3d6d",
		"trash":   "ignored",
	}
	for k, v := range want {
		if got := mustValue(t, dest, body, k); got != v {
			t.Errorf("field %q = %q, want %q", k, got, v)
		}
	}
	if dest.Len() != len(want) {
		t.Errorf("Len() = %d, want %d", dest.Len(), len(want))
	}
}

func TestScanDefaultPreservesFieldOrder(t *testing.T) {
	body := `argc=2 a0=2f62696e a1=2d6c`
	dest, errored := scanDefault(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	wantOrder := []string{"argc", "a0", "a1"}
	if dest.Len() != len(wantOrder) {
		t.Fatalf("Len() = %d, want %d", dest.Len(), len(wantOrder))
	}
	for i, k := range wantOrder {
		if got := dest.At(i).Key; got != k {
			t.Errorf("At(%d).Key = %q, want %q", i, got, k)
		}
	}
}

func TestScanDefaultQuotedValue(t *testing.T) {
	body := `cwd="/tmp/the ls" key=(null)`
	dest, errored := scanDefault(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "cwd"); got != "/tmp/the ls" {
		t.Errorf("cwd = %q, want %q", got, "/tmp/the ls")
	}
	cwdSpan, _ := dest.Get("cwd")
	if !cwdSpan.Quoted {
		t.Errorf("cwd span should be marked Quoted")
	}
	if got := mustValue(t, dest, body, "key"); got != "(null)" {
		t.Errorf("key = %q, want %q", got, "(null)")
	}
	keySpan, _ := dest.Get("key")
	if keySpan.Quoted {
		t.Errorf("key span should not be marked Quoted")
	}
}

func TestScanDefaultDuplicateKeyOverwrites(t *testing.T) {
	body := `a=1 a=2`
	dest, errored := scanDefault(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "a"); got != "2" {
		t.Errorf("a = %q, want %q (later occurrence should win)", got, "2")
	}
	if dest.Len() != 1 {
		t.Errorf("duplicate key should not add a second entry, Len() = %d", dest.Len())
	}
}

func TestScanDefaultNoEqualsSign(t *testing.T) {
	body := `justsometext`
	dest, errored := scanDefault(t, body)
	if errored {
		t.Fatalf("expected silent break, not a structural error")
	}
	if dest.Len() != 0 {
		t.Errorf("expected no fields, got %d", dest.Len())
	}
}

func TestScanDefaultTrailingKeyNoValue(t *testing.T) {
	body := `a=1 trailing=`
	dest, errored := scanDefault(t, body)
	if !errored {
		t.Fatalf("expected structural error for trailing key with no value at all")
	}
	if got := mustValue(t, dest, body, "a"); got != "1" {
		t.Errorf("fields before the error should still be kept: a = %q, want %q", got, "1")
	}
	if _, ok := dest.Get("trailing"); ok {
		t.Errorf("trailing should not have been recorded")
	}
}

func TestScanDefaultUnterminatedQuote(t *testing.T) {
	body := `a=1 cwd="/tmp/never closed`
	dest, errored := scanDefault(t, body)
	if !errored {
		t.Fatalf("expected structural error for an unterminated quoted value")
	}
	if got := mustValue(t, dest, body, "a"); got != "1" {
		t.Errorf("fields before the error should still be kept: a = %q, want %q", got, "1")
	}
	if _, ok := dest.Get("cwd"); ok {
		t.Errorf("cwd should not have been recorded")
	}
}

func TestScanDefaultEmptyBody(t *testing.T) {
	dest, errored := scanDefault(t, "")
	if errored {
		t.Fatalf("empty body should not be a structural error")
	}
	if dest.Len() != 0 {
		t.Errorf("expected no fields, got %d", dest.Len())
	}
}

func scanSELinux(t *testing.T, body string) (fieldscan.FieldMap, bool) {
	t.Helper()
	dest := fieldscan.NewFieldMap()
	errored := fieldscan.ScanSELinux([]byte(body), &dest)
	return dest, errored
}

func TestScanSELinuxAVCDenied(t *testing.T) {
	body := `avc:  denied  { read write } for pid=1234 comm="httpd" scontext=a tcontext=b tclass=file`
	dest, errored := scanSELinux(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "_avc_status"); got != "denied" {
		t.Errorf("_avc_status = %q, want %q", got, "denied")
	}
	if got := mustValue(t, dest, body, "_avc_op"); got != "read write" {
		t.Errorf("_avc_op = %q, want %q", got, "read write")
	}
	if got := mustValue(t, dest, body, "pid"); got != "1234" {
		t.Errorf("pid = %q, want %q", got, "1234")
	}
	if got := mustValue(t, dest, body, "comm"); got != "httpd" {
		t.Errorf("comm = %q, want %q", got, "httpd")
	}
}

func TestScanSELinuxPolicyLoaded(t *testing.T) {
	body := `policy loaded auid=4294967295 ses=4294967295`
	dest, errored := scanSELinux(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "_policy_status"); got != "loaded" {
		t.Errorf("_policy_status = %q, want %q", got, "loaded")
	}
	if got := mustValue(t, dest, body, "auid"); got != "4294967295" {
		t.Errorf("auid = %q, want %q", got, "4294967295")
	}
}

func TestScanSELinuxNetlabelPrefix(t *testing.T) {
	body := `netlabel: auid=0 ses=1 subj=system_u:system_r:init_t:s0 res=1`
	dest, errored := scanSELinux(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "_sel_prefix"); got != "netlabel:" {
		t.Errorf("_sel_prefix = %q, want %q", got, "netlabel:")
	}
	if got := mustValue(t, dest, body, "auid"); got != "0" {
		t.Errorf("auid = %q, want %q", got, "0")
	}
}

func TestScanSELinuxSingleLeadingTokenIsNotPrefix(t *testing.T) {
	body := `op=load_policy auid=0`
	dest, errored := scanSELinux(t, body)
	if errored {
		t.Fatalf("unexpected structural error")
	}
	// A single leading token with no space before the key is not a
	// dialect prefix at all -- it falls through to normal key handling.
	if _, ok := dest.Get("_sel_prefix"); ok {
		t.Errorf("single leading token with no space before the key should not produce a prefix")
	}
	if got := mustValue(t, dest, body, "op"); got != "load_policy" {
		t.Errorf("op = %q, want %q", got, "load_policy")
	}
}

func TestScanSELinuxPropagatesStructuralError(t *testing.T) {
	body := `a=1 trailing=`
	_, errored := scanSELinux(t, body)
	if !errored {
		t.Fatalf("expected structural error to propagate through the SELinux dialect too")
	}
}

func TestHandlesSELinuxType(t *testing.T) {
	cases := []struct {
		t    uint32
		want bool
	}{
		{1107, true},
		{1400, true},
		{1425, true},
		{1450, true},
		{1399, false},
		{1451, false},
		{1300, false},
	}
	for _, c := range cases {
		if got := fieldscan.HandlesSELinuxType(c.t); got != c.want {
			t.Errorf("HandlesSELinuxType(%d) = %v, want %v", c.t, got, c.want)
		}
	}
}

func TestRegistrySelectFallsBackToDefault(t *testing.T) {
	r := fieldscan.NewRegistry()
	s := r.Select(1107)
	body := `a=1`
	dest := fieldscan.NewFieldMap()
	if errored := s([]byte(body), &dest); errored {
		t.Fatalf("unexpected structural error")
	}
	if _, ok := dest.Get("_avc_status"); ok {
		t.Errorf("empty registry should never select the SELinux dialect")
	}
}

func TestDefaultRegistryDispatchesSELinuxForAVCType(t *testing.T) {
	r := fieldscan.NewDefaultRegistry()
	s := r.Select(1107)
	body := `avc:  denied  { read } for pid=1`
	dest := fieldscan.NewFieldMap()
	if errored := s([]byte(body), &dest); errored {
		t.Fatalf("unexpected structural error")
	}
	if got := mustValue(t, dest, body, "_avc_status"); got != "denied" {
		t.Errorf("_avc_status = %q, want %q", got, "denied")
	}
}

func TestDefaultRegistryDispatchesDefaultForUnrelatedType(t *testing.T) {
	r := fieldscan.NewDefaultRegistry()
	s := r.Select(1300)
	body := `avc:  denied  { read } for pid=1`
	dest := fieldscan.NewFieldMap()
	if errored := s([]byte(body), &dest); errored {
		t.Fatalf("unexpected structural error")
	}
	if _, ok := dest.Get("_avc_status"); ok {
		t.Errorf("record type 1300 should use the default dialect, not SELinux")
	}
}
