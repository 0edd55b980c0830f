package extract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wojcikm/alice/pkg/errs"
)

func TestExtractText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Trip\nParis in June"), 0o644))

	res, err := Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "notes.md", res.Name)
	assert.Equal(t, "md", res.Format)
	assert.Equal(t, "# Trip\nParis in June", res.Text)
}

func TestExtractSpreadsheet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "budget.xlsx")
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "item"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "cost"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "hotel"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", 420))
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	res, err := Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "## Sheet: Sheet1\nitem | cost\nhotel | 420", res.Text)
	assert.Equal(t, 1, res.Metadata["sheets"])
}

func TestExtractErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := Extract(context.Background(), filepath.Join(dir, "missing.txt"))
	assert.True(t, errs.IsNotFound(err))

	bin := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(bin, []byte{0x89, 0x50}, 0o644))
	_, err = Extract(context.Background(), bin)
	assert.True(t, errs.IsValidation(err))

	_, err = Extract(context.Background(), dir)
	assert.True(t, errs.IsValidation(err))
}

func TestStripXML(t *testing.T) {
	in := `<w:body><w:p><w:r><w:t>Hello</w:t></w:r></w:p><w:p><w:r><w:t>World &amp; co</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "Hello\nWorld & co", stripXML(in))
}

func TestSupported(t *testing.T) {
	assert.Contains(t, Supported(), ".pdf")
	assert.Contains(t, Supported(), ".md")
}
