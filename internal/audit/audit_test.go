package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/wadesk/internal/domain"
	"github.com/talkincode/wadesk/internal/testutil"
)

func TestRecordWritesEntries(t *testing.T) {
	db := testutil.NewDB(t)
	svc, err := NewService(db, 2)
	require.NoError(t, err)
	defer svc.Release()

	for i := 0; i < 5; i++ {
		svc.Record(Entry{TenantID: 7, UserID: 3, Username: "ana", Action: "login", IP: "10.0.0.1"})
	}
	svc.Wait()

	var rows []domain.AuditLog
	require.NoError(t, db.Where("tenant_id = ?", 7).Find(&rows).Error)
	require.Len(t, rows, 5)
	assert.Equal(t, "login", rows[0].Action)
	assert.Equal(t, "10.0.0.1", rows[0].IP)
	assert.NotZero(t, rows[0].ID)
}
