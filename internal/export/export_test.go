package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/360EntSecGroup-Skylar/excelize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/domain"
)

func TestFormatCSV(t *testing.T) {
	rows := []Row{{{"a", "x"}, {"b", "y,z"}}}
	assert.Equal(t, "\"a\",\"b\"\n\"x\",\"y,z\"", FormatCSV(rows))
}

func TestFormatCSVEscapesQuotes(t *testing.T) {
	rows := []Row{
		{{"name", `say "hi"`}, {"n", 3}},
		{{"name", nil}, {"n", 4}},
	}
	assert.Equal(t, "\"name\",\"n\"\n\"say \"\"hi\"\"\",\"3\"\n\"\",\"4\"", FormatCSV(rows))
}

func TestFormatCSVEmpty(t *testing.T) {
	assert.Equal(t, "", FormatCSV(nil))
	assert.Equal(t, "", FormatCSV([]Row{}))
}

func TestFormatValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var nilTime *time.Time
	var nilID *int64
	id := int64(9)
	assert.Equal(t, "2024-01-02T03:04:05Z", FormatValue(ts))
	assert.Equal(t, "2024-01-02T03:04:05Z", FormatValue(&ts))
	assert.Equal(t, "", FormatValue(nilTime))
	assert.Equal(t, "", FormatValue(nilID))
	assert.Equal(t, "9", FormatValue(&id))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, "1.5", FormatValue(1.5))
}

func TestLeadRowsColumnOrder(t *testing.T) {
	rows := LeadRows([]domain.Lead{{ID: 1, Name: "Ana", Phone: "5511"}})
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "name", "phone", "email", "course_interest", "status", "source", "created_at"}, rows[0].Names())
	csv := FormatCSV(rows)
	assert.True(t, strings.HasPrefix(csv, `"id","name","phone"`))
	assert.Contains(t, csv, `"1","Ana","5511"`)
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	rows := ConversationRows([]domain.Conversation{{ID: 5, ChatID: "5511@s.whatsapp.net", Status: "open"}})
	require.NoError(t, WriteXLSX(&buf, "conversations", rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, "id", f.GetCellValue("conversations", "A1"))
	assert.Equal(t, "5", f.GetCellValue("conversations", "A2"))
	assert.Equal(t, "chat_id", f.GetCellValue("conversations", "C1"))
}

func TestReadKeywords(t *testing.T) {
	in := "keyword,response\nPreço,Nossos cursos custam R$ 100\n ,vazio\nhorario, Das 8h as 18h \n"
	recs, err := ReadKeywords(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, KeywordRecord{Keyword: "Preço", Response: "Nossos cursos custam R$ 100"}, recs[0])
	assert.Equal(t, "Das 8h as 18h", recs[1].Response)
}
