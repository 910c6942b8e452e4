package common

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
)

const (
	ENABLED  = "enabled"
	DISABLED = "disabled"
)

var (
	idNode     *snowflake.Node
	idNodeOnce sync.Once
)

func node() *snowflake.Node {
	idNodeOnce.Do(func() {
		n, err := strconv.ParseInt(os.Getenv("WADESK_NODE_ID"), 10, 64)
		if err != nil || n < 0 || n > 1023 {
			n = 1
		}
		idNode, _ = snowflake.NewNode(n)
	})
	return idNode
}

// UUIDint64 returns a time ordered unique int64 id
func UUIDint64() int64 {
	return node().Generate().Int64()
}

// GetSecretSalt salt used by legacy operator password hashes
func GetSecretSalt() string {
	if s := strings.TrimSpace(os.Getenv("WADESK_SECRET_SALT")); s != "" {
		return s
	}
	return "pVv7Lq1uS4mQ"
}

func Sha256HashWithSalt(src, salt string) string {
	h := sha256.New()
	h.Write([]byte(src))
	h.Write([]byte(salt))
	return hex.EncodeToString(h.Sum(nil))
}

// IsEmptyOrNA reports blank values
func IsEmptyOrNA(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || strings.EqualFold(s, "N/A")
}

// SplitIDs parses a comma separated id list, skipping invalid entries
func SplitIDs(s string) []int64 {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if id, err := strconv.ParseInt(part, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// JoinIDs is the inverse of SplitIDs
func JoinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}
