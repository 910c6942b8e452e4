package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient struct {
	id  string
	mu  sync.Mutex
	got [][]byte
}

func (f *fakeClient) ID() string { return f.id }

func (f *fakeClient) Send(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, p)
	return nil
}

func (f *fakeClient) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := NewHub()
	a, b, c := &fakeClient{id: "a"}, &fakeClient{id: "b"}, &fakeClient{id: "c"}
	for _, cl := range []*fakeClient{a, b, c} {
		h.Attach(cl)
	}
	room := InstanceRoom(7)
	h.Join(room, a)
	h.Join(room, b)

	assert.Equal(t, 2, h.Broadcast(room, []byte("x"), ""))
	assert.Equal(t, 1, h.Broadcast(room, []byte("y"), "a"))
	assert.Equal(t, 1, a.count())
	assert.Equal(t, 2, b.count())
	assert.Zero(t, c.count())
}

func TestDetachRemovesMemberships(t *testing.T) {
	h := NewHub()
	a := &fakeClient{id: "a"}
	h.Attach(a)
	h.Join(InstanceRoom(1), a)
	h.Join(AdminsRoom(2), a)
	assert.Len(t, h.Rooms("a"), 2)

	h.Detach(a)
	assert.Empty(t, h.Rooms("a"))
	assert.Zero(t, h.Members(InstanceRoom(1)))
	assert.Zero(t, h.Broadcast(AdminsRoom(2), []byte("x"), ""))
	assert.False(t, h.SendTo("a", []byte("x")))

	// detaching twice is harmless
	h.Detach(a)
}

func TestJoinRequiresAttach(t *testing.T) {
	h := NewHub()
	a := &fakeClient{id: "a"}
	h.Join("room", a)
	assert.Zero(t, h.Members("room"))
}

func TestRoomNames(t *testing.T) {
	assert.Equal(t, "instance:5", InstanceRoom(5))
	assert.Equal(t, "tenant:3:admins", AdminsRoom(3))
	assert.Equal(t, "tenant:3:user:9", UserRoom(3, 9))
}
