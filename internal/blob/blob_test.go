package blob

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func exerciseStorage(t *testing.T, st Storage) {
	t.Helper()
	key := Key("sub-1", "report.pdf")
	if _, err := st.Put(key, strings.NewReader("hello")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	rc, err := st.GetStream(key)
	if err != nil {
		t.Fatalf("GetStream: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "hello" {
		t.Fatalf("content = %q", data)
	}
	objs, err := st.List("submissions/sub-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(objs) != 1 || objs[0].Path != key {
		t.Fatalf("List = %+v, want %s", objs, key)
	}
	if err := st.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := st.GetStream(key); err == nil {
		t.Fatal("expected error after delete")
	}
	if err := st.Delete(key); err == nil {
		t.Fatal("second Delete should fail")
	}
}

func TestFileSystem(t *testing.T) {
	t.Parallel()
	fs, err := NewFileSystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSystem: %v", err)
	}
	exerciseStorage(t, fs)
	if _, err := fs.Put("../escape.txt", strings.NewReader("x")); err == nil {
		t.Fatal("expected error for key outside folder")
	}
	objs, err := fs.List("submissions/missing")
	if err != nil || len(objs) != 0 {
		t.Fatalf("List(missing) = %v, %v", objs, err)
	}
}

func TestMemory(t *testing.T) {
	t.Parallel()
	m := NewMemory()
	exerciseStorage(t, m)
	if m.Len() != 0 {
		t.Fatalf("Len = %d", m.Len())
	}
}

func TestNewStorage(t *testing.T) {
	t.Parallel()
	if _, err := NewStorage(&Config{Provider: "memory"}); err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, err := NewStorage(&Config{Provider: "filesystem"}); err == nil {
		t.Fatal("filesystem without folder should fail")
	}
	if _, err := NewStorage(&Config{Provider: "ftp"}); err == nil {
		t.Fatal("unknown provider should fail")
	}
	if _, err := NewStorage(&Config{Provider: "s3"}); err == nil {
		t.Fatal("s3 without bucket should fail")
	}

	v := viper.New()
	v.Set("storage.provider", "filesystem")
	v.Set("storage.folder", t.TempDir())
	st, err := NewStorage(GetConfig(v))
	if err != nil {
		t.Fatalf("from viper: %v", err)
	}
	if _, ok := st.(*FileSystem); !ok {
		t.Fatalf("got %T", st)
	}
}

func TestKey(t *testing.T) {
	t.Parallel()
	a, b := Key("s", "a.pdf"), Key("s", "a.pdf")
	if a == b {
		t.Fatal("keys must be unique")
	}
	if !strings.HasPrefix(a, "submissions/s/") || !strings.HasSuffix(a, "-a.pdf") {
		t.Fatalf("Key = %q", a)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]string{
		"report.pdf":          "report.pdf",
		"../../etc/passwd":    "passwd",
		`C:\docs\my file.txt`: "my_file.txt",
		".hidden":             "hidden",
		"":                    "file",
		"..":                  "file",
	} {
		if got := SanitizeName(in); got != want {
			t.Errorf("SanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
	long := strings.Repeat("a", 300) + ".pdf"
	if got := SanitizeName(long); len(got) != maxNameLen || !strings.HasSuffix(got, ".pdf") {
		t.Errorf("long name = %q", got)
	}
}

func TestSniff(t *testing.T) {
	t.Parallel()
	pdf := append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("x"), 5000)...)
	ct, r, err := Sniff(bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("Sniff: %v", err)
	}
	if ct != "application/pdf" {
		t.Fatalf("type = %q", ct)
	}
	all, _ := io.ReadAll(r)
	if !bytes.Equal(all, pdf) {
		t.Fatal("replayed content differs")
	}

	ct, _, err = Sniff(strings.NewReader("short"))
	if err != nil || !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("short: %q, %v", ct, err)
	}
}

func TestConsistent(t *testing.T) {
	t.Parallel()
	png := "image/png"
	cases := []struct {
		declared, sniffed string
		want              bool
	}{
		{"application/pdf", "application/pdf", true},
		{"application/pdf", png, false},
		{png, "text/plain; charset=utf-8", true},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip", true},
		{"image/jpeg", "application/octet-stream", true},
		{"", png, true},
	}
	for _, c := range cases {
		if got := Consistent(c.declared, c.sniffed); got != c.want {
			t.Errorf("Consistent(%q, %q) = %v", c.declared, c.sniffed, got)
		}
	}
}
