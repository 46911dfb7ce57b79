package transcript

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/chat-relay/backend/internal/model/chat"
)

// TimestampLayout is the ISO-8601 UTC encoding used in exports.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const header = "Role,Message,Timestamp"

// Exporter writes transcripts as CSV files into a directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// NewExporter returns an exporter writing into dir. A relative dir is resolved
// against the working directory at export time.
func NewExporter(dir string) *Exporter {
	if strings.TrimSpace(dir) == "" {
		dir = "exports"
	}
	return &Exporter{dir: dir, now: time.Now}
}

// Export writes turns to a new file and returns its path.
func (e *Exporter) Export(turns []chat.Turn) (string, error) {
	if len(turns) == 0 {
		return "", chat.NewFailure(chat.KindEmptyHistory, "No chat history available to export", nil)
	}

	dir := e.dir
	if !filepath.IsAbs(dir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		dir = filepath.Join(cwd, dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(e.now().UTC().Format(TimestampLayout))
	name := fmt.Sprintf("chat-history-%s-%s.csv", stamp, uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	if err := WriteCSV(f, turns); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close export file: %w", err)
	}
	return path, nil
}

// WriteCSV serializes turns: a header row, then one row per turn. The message
// column is always quoted with inner quotes doubled; nothing else is escaped.
// Rows are separated by "\n" without a trailing newline.
func WriteCSV(w io.Writer, turns []chat.Turn) error {
	var b strings.Builder
	b.WriteString(header)
	for _, turn := range turns {
		b.WriteByte('\n')
		b.WriteString(string(turn.Role))
		b.WriteString(`,"`)
		b.WriteString(strings.ReplaceAll(turn.Content, `"`, `""`))
		b.WriteString(`",`)
		b.WriteString(turn.Timestamp.UTC().Format(TimestampLayout))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
