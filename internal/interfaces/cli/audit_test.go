package cli

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	types "github.com/turtacn/RigorAudit/pkg/types/audit"
)

type auditOutput struct {
	types.Record
	Cached bool `json:"cached"`
}

func decodeAudit(t *testing.T, out string) auditOutput {
	t.Helper()
	var got auditOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestAuditCommand_TextJSON(t *testing.T) {
	out, err := execute(t, "", "audit", "--text", trialText, "--title", "Exercise trial", "-o", "json")
	require.NoError(t, err)

	got := decodeAudit(t, out)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "Exercise trial", got.Title)
	assert.Equal(t, "cli", got.Source)
	assert.True(t, got.Features.Has("randomization"))
	assert.GreaterOrEqual(t, got.Report.OverallScore, 0.0)
	assert.LessOrEqual(t, got.Report.OverallScore, 10.0)
	assert.Contains(t, []types.Rating{types.RatingHigh, types.RatingMedium, types.RatingLow}, got.Report.RigorRating)
	assert.False(t, got.Cached)
}

func TestAuditCommand_TextAndTableOutput(t *testing.T) {
	out, err := execute(t, "", "audit", "--text", trialText, "--title", "Exercise trial")
	require.NoError(t, err)
	assert.Contains(t, out, "Exercise trial")
	assert.Contains(t, out, "Score:")

	out, err = execute(t, "", "audit", "--text", trialText, "-o", "table")
	require.NoError(t, err)
	assert.Contains(t, out, "CATEGORY")
	assert.Contains(t, out, "randomization")
}

func TestAuditCommand_InputValidation(t *testing.T) {
	_, err := execute(t, "", "audit")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --file or --text")

	_, err = execute(t, "", "audit", "--text", "x", "--file", "a.txt")
	require.Error(t, err)

	_, err = execute(t, "", "audit", "--file", "a.txt", "--format", "docx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --format")
}

func TestAuditCommand_FailUnder(t *testing.T) {
	out, err := execute(t, "", "audit", "--text", trialText, "--fail-under", "11", "-o", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "below --fail-under")
	// The report is still printed before failing.
	assert.NotEmpty(t, decodeAudit(t, out).ID)
}

func TestAuditCommand_MarkdownFileAndOut(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(in, []byte("# Sleep study\n\n## Methods\n\n"+trialText+"\n"), 0o644))
	report := filepath.Join(dir, "reports", "paper.json")

	out, err := execute(t, "", "audit", "--file", in, "--out", report, "-o", "json")
	require.NoError(t, err)
	got := decodeAudit(t, out)
	assert.Equal(t, "paper.md", got.Source)
	assert.True(t, got.Features.Has("randomization"))

	data, err := os.ReadFile(report)
	require.NoError(t, err)
	assert.Equal(t, got.ID, decodeAudit(t, string(data)).ID)
}

func TestAuditCommand_Stdin(t *testing.T) {
	out, err := execute(t, trialText, "audit", "--file", "-", "-o", "json")
	require.NoError(t, err)
	got := decodeAudit(t, out)
	assert.Equal(t, "stdin.txt", got.Source)
	assert.True(t, got.Features.Has("randomization"))
}

func TestAuditCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "", "audit", "--file", filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read input")
}

const remoteRecord = `{"id":"remote-1","title":"Remote","text_hash":"h","features":{},
"report":{"overall_score":4.5,"rigor_rating":"Low","critical_gaps":[{"message":"No blinding","evidence":""}],
"strengths":[],"actionable_recommendations":[],"deterministic":true},"created_at":"2024-05-01T10:00:00Z","cached":true}`

func TestAuditCommand_Remote(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		_, _ = io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, remoteRecord)
	}))
	defer srv.Close()

	dir := t.TempDir()
	jats := filepath.Join(dir, "PMC1.xml")
	require.NoError(t, os.WriteFile(jats, []byte("<article/>"), 0o644))
	md := filepath.Join(dir, "paper.md")
	require.NoError(t, os.WriteFile(md, []byte("# Methods\n"), 0o644))

	base := []string{"--server", srv.URL, "--api-key", "secret", "-o", "json", "audit"}

	out, err := execute(t, "", append(base, "--text", trialText)...)
	require.NoError(t, err)
	got := decodeAudit(t, out)
	assert.Equal(t, "remote-1", got.ID)
	assert.True(t, got.Cached)

	_, err = execute(t, "", append(base, "--file", jats)...)
	require.NoError(t, err)
	_, err = execute(t, "", append(base, "--file", md)...)
	require.NoError(t, err)

	assert.Equal(t, []string{"/api/v1/audits", "/api/v1/audits/jats", "/api/v1/audits/upload"}, paths)
}
