package whatsapp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"
	"gorm.io/gorm"

	"github.com/talkincode/wadesk/internal/domain"
)

const (
	StatusCreated         = "created"
	StatusProvisioned     = "provisioned"
	StatusConnected       = "connected"
	StatusDisconnected    = "disconnected"
	StatusProvisionFailed = "provision_failed"
)

// store devices carry this prefix in BusinessName so they can be matched
// back to an instance row after a restart
const instanceMarkerPrefix = "wadesk_instance:"

var (
	ErrNotInitialized     = errors.New("whatsapp manager not initialized")
	ErrInstanceNotFound   = errors.New("instance has no whatsapp client")
	ErrNotConnected       = errors.New("whatsapp instance not connected")
	ErrInvalidRecipient   = errors.New("invalid recipient")
	ErrAlreadyProvisioned = errors.New("instance already provisioned")
)

// State is a snapshot of one instance client
type State struct {
	InstanceID int64  `json:"instance_id,string"`
	HasClient  bool   `json:"has_client"`
	Connected  bool   `json:"connected"`
	LoggedIn   bool   `json:"logged_in"`
	Jid        string `json:"jid"`
	HasQR      bool   `json:"has_qr"`
}

// Manager owns one whatsmeow client per instance and delivers outbound
// text messages for the chat layer.
type Manager struct {
	db    *gorm.DB
	store *sqlstore.Container

	mu      sync.RWMutex
	clients map[int64]*whatsmeow.Client
	qr      map[int64]string
}

func instanceMarker(id int64) string {
	return instanceMarkerPrefix + strconv.FormatInt(id, 10)
}

func parseInstanceMarker(bn string) (int64, bool) {
	if !strings.HasPrefix(bn, instanceMarkerPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(bn, instanceMarkerPrefix), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func storeDialect(dbType string) string {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "postgres", "postgresql":
		return "postgres"
	default:
		return "sqlite3"
	}
}

// NormalizeChatID turns a bare phone number into a user JID; full JIDs pass through
func NormalizeChatID(chatID string) (waTypes.JID, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return waTypes.EmptyJID, ErrInvalidRecipient
	}
	if !strings.Contains(chatID, "@") {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, chatID)
		if digits == "" {
			return waTypes.EmptyJID, ErrInvalidRecipient
		}
		return waTypes.NewJID(digits, waTypes.DefaultUserServer), nil
	}
	jid, err := waTypes.ParseJID(chatID)
	if err != nil {
		return waTypes.EmptyJID, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}
	return jid, nil
}

// NewManager wraps the application database for the whatsmeow device store
// and registers a client for every stored device that belongs to an instance.
func NewManager(ctx context.Context, db *gorm.DB, dbType string) (*Manager, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("obtain sql.DB: %w", err)
	}
	dialect := storeDialect(dbType)
	if dialect == "sqlite3" {
		if _, err := sqlDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			zap.L().Warn("whatsapp: unable to enable sqlite foreign_keys pragma", zap.Error(err))
		}
	}
	return newManagerWithDB(ctx, db, sqlDB, dialect)
}

func newManagerWithDB(ctx context.Context, db *gorm.DB, sqlDB *sql.DB, dialect string) (*Manager, error) {
	container := sqlstore.NewWithDB(sqlDB, dialect, nil)
	if err := container.Upgrade(ctx); err != nil {
		return nil, fmt.Errorf("sqlstore upgrade: %w", err)
	}
	m := &Manager{
		db:      db,
		store:   container,
		clients: make(map[int64]*whatsmeow.Client),
		qr:      make(map[int64]string),
	}

	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stored devices: %w", err)
	}
	for _, dev := range devices {
		id, ok := parseInstanceMarker(dev.BusinessName)
		if !ok {
			continue
		}
		m.register(id, whatsmeow.NewClient(dev, nil))
	}
	zap.L().Info("whatsapp: manager initialized",
		zap.Int("stored_devices", len(devices)),
		zap.Int("instances", len(m.clients)),
		zap.String("dialect", dialect))
	return m, nil
}

// Start connects every registered client in the background
func (m *Manager) Start() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, cli := range m.clients {
		m.connectAsync(id, cli)
	}
}

// Close disconnects every client
func (m *Manager) Close() {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, cli := range m.clients {
		cli.Disconnect()
	}
}

func (m *Manager) connectAsync(id int64, cli *whatsmeow.Client) {
	go func() {
		if cli.IsConnected() {
			return
		}
		if err := cli.Connect(); err != nil {
			zap.L().Warn("whatsapp: connect failed", zap.Int64("instance_id", id), zap.Error(err))
		}
	}()
}

func (m *Manager) client(id int64) (*whatsmeow.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cli, ok := m.clients[id]
	return cli, ok
}

// SendMessage sends a text message from the instance's number and returns
// the transport message id.
func (m *Manager) SendMessage(ctx context.Context, instanceID int64, chatID, text string) (string, error) {
	if m == nil {
		return "", ErrNotInitialized
	}
	cli, ok := m.client(instanceID)
	if !ok {
		return "", ErrInstanceNotFound
	}
	if !cli.IsConnected() || !cli.IsLoggedIn() {
		return "", ErrNotConnected
	}
	to, err := NormalizeChatID(chatID)
	if err != nil {
		return "", err
	}
	resp, err := cli.SendMessage(ctx, to, &waE2E.Message{Conversation: proto.String(text)})
	if err != nil {
		zap.L().Warn("whatsapp: send message failed", zap.Int64("instance_id", instanceID), zap.Error(err))
		return "", err
	}
	zap.L().Debug("whatsapp: message sent", zap.Int64("instance_id", instanceID), zap.String("message_id", resp.ID))
	return resp.ID, nil
}

// Provision creates a store device for the instance and starts pairing.
// The QR code becomes available through QRCode once whatsmeow emits it.
func (m *Manager) Provision(ctx context.Context, inst *domain.Instance) error {
	if m == nil {
		return ErrNotInitialized
	}
	if cli, ok := m.client(inst.ID); ok {
		if cli.Store.ID != nil {
			return ErrAlreadyProvisioned
		}
		m.connectAsync(inst.ID, cli)
		return nil
	}

	dev := m.store.NewDevice()
	dev.PushName = inst.Name
	dev.BusinessName = instanceMarker(inst.ID)
	cli := whatsmeow.NewClient(dev, nil)
	m.register(inst.ID, cli)
	m.setStatus(inst.ID, map[string]interface{}{"status": StatusProvisioned})
	m.connectAsync(inst.ID, cli)
	zap.L().Info("whatsapp: instance provisioned", zap.Int64("instance_id", inst.ID))
	return nil
}

// Connect reconnects an already registered client
func (m *Manager) Connect(instanceID int64) error {
	if m == nil {
		return ErrNotInitialized
	}
	cli, ok := m.client(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}
	m.connectAsync(instanceID, cli)
	return nil
}

func (m *Manager) Disconnect(instanceID int64) error {
	if m == nil {
		return ErrNotInitialized
	}
	cli, ok := m.client(instanceID)
	if !ok {
		return ErrInstanceNotFound
	}
	cli.Disconnect()
	m.setStatus(instanceID, map[string]interface{}{"status": StatusDisconnected})
	return nil
}

// Remove disconnects the client and deletes its store device
func (m *Manager) Remove(ctx context.Context, instanceID int64) error {
	if m == nil {
		return ErrNotInitialized
	}
	m.mu.Lock()
	cli, ok := m.clients[instanceID]
	delete(m.clients, instanceID)
	delete(m.qr, instanceID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	cli.Disconnect()
	if cli.Store.ID == nil {
		return nil
	}
	if err := m.store.DeleteDevice(ctx, cli.Store); err != nil {
		return fmt.Errorf("delete store device: %w", err)
	}
	zap.L().Info("whatsapp: instance device removed", zap.Int64("instance_id", instanceID))
	return nil
}

// QRCode returns the latest pairing code for the instance, empty when none is pending
func (m *Manager) QRCode(instanceID int64) string {
	if m == nil {
		return ""
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.qr[instanceID]
}

func (m *Manager) State(instanceID int64) State {
	st := State{InstanceID: instanceID}
	if m == nil {
		return st
	}
	cli, ok := m.client(instanceID)
	if !ok {
		return st
	}
	st.HasClient = true
	st.Connected = cli.IsConnected()
	st.LoggedIn = cli.IsLoggedIn()
	if cli.Store.ID != nil {
		st.Jid = cli.Store.ID.String()
	}
	st.HasQR = m.QRCode(instanceID) != ""
	return st
}

func (m *Manager) register(id int64, cli *whatsmeow.Client) {
	cli.AddEventHandler(func(evt interface{}) {
		m.handleEvent(id, cli, evt)
	})
	m.mu.Lock()
	m.clients[id] = cli
	m.mu.Unlock()
}

func (m *Manager) handleEvent(id int64, cli *whatsmeow.Client, evt interface{}) {
	switch e := evt.(type) {
	case *events.QR:
		if len(e.Codes) == 0 {
			return
		}
		m.mu.Lock()
		m.qr[id] = e.Codes[0]
		m.mu.Unlock()
		zap.L().Info("whatsapp: qr code received", zap.Int64("instance_id", id))
	case *events.PairSuccess:
		zap.L().Info("whatsapp: paired", zap.Int64("instance_id", id), zap.String("jid", e.ID.String()))
	case *events.Connected:
		m.mu.Lock()
		delete(m.qr, id)
		m.mu.Unlock()
		m.persistDevice(id, cli.Store)
		jid := ""
		if cli.Store.ID != nil {
			jid = cli.Store.ID.String()
		}
		m.setStatus(id, map[string]interface{}{"status": StatusConnected, "jid": jid})
		zap.L().Info("whatsapp: connected", zap.Int64("instance_id", id), zap.String("jid", jid))
	case *events.Disconnected:
		m.setStatus(id, map[string]interface{}{"status": StatusDisconnected})
		zap.L().Info("whatsapp: disconnected", zap.Int64("instance_id", id))
	case *events.LoggedOut:
		m.setStatus(id, map[string]interface{}{"status": StatusDisconnected, "jid": ""})
		zap.L().Warn("whatsapp: logged out", zap.Int64("instance_id", id), zap.String("reason", e.Reason.String()))
	case *events.Message:
		zap.L().Debug("whatsapp: inbound message",
			zap.Int64("instance_id", id),
			zap.String("chat", e.Info.Chat.String()),
			zap.String("message_id", e.Info.ID))
	default:
		zap.L().Debug("whatsapp event", zap.Int64("instance_id", id), zap.String("type", fmt.Sprintf("%T", evt)))
	}
}

// persistDevice makes sure the paired device survives a restart with its marker
func (m *Manager) persistDevice(id int64, dev *store.Device) {
	if dev == nil || dev.ID == nil {
		return
	}
	if dev.BusinessName == "" {
		dev.BusinessName = instanceMarker(id)
	}
	if err := m.store.PutDevice(context.Background(), dev); err != nil {
		zap.L().Warn("whatsapp: persist device failed", zap.Int64("instance_id", id), zap.Error(err))
		m.setStatus(id, map[string]interface{}{"status": StatusProvisionFailed})
	}
}

func (m *Manager) setStatus(id int64, values map[string]interface{}) {
	if m.db == nil {
		return
	}
	if err := m.db.Model(&domain.Instance{}).Where("id = ?", id).Updates(values).Error; err != nil {
		zap.L().Warn("whatsapp: instance status update failed", zap.Int64("instance_id", id), zap.Error(err))
	}
}
