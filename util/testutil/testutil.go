package testutil

import (
	"crypto/sha1"
	"fmt"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/icrowley/fake"
	"github.com/satori/go.uuid"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util/storage"
	"github.com/stretchr/testify/require"
)

// RandomDateTime returns a random time within the past year.
func RandomDateTime() time.Time {
	t := time.Now().UTC()
	minutes := rand.Intn(525600)
	return t.Add(time.Duration(minutes*-1) * time.Minute)
}

// MakePln creates a mock Pln for testing.
func MakePln() *models.Pln {
	return &models.Pln{
		Name:     fmt.Sprintf("%s Network", fake.Company()),
		Email:    fake.EmailAddress(),
		Username: fake.UserName(),
		Password: fake.SimplePassword(),
	}
}

// MakeBox creates a mock active box in pln for testing. If hostPort
// is empty, the box gets a fake hostname; otherwise hostPort (such as
// the host and port of an httptest.Server) is used for its web
// services and as its Port, so boxes on one host stay distinct.
func MakeBox(pln *models.Pln, hostPort string) *models.Box {
	box := &models.Box{
		PlnId:              pln.Id,
		Hostname:           fake.DomainName(),
		IpAddress:          fake.IPv4(),
		Protocol:           constants.DefaultBoxProtocol,
		Port:               constants.DefaultBoxPort,
		WebServicePort:     constants.DefaultWebServicePort,
		WebServiceProtocol: constants.DefaultWebServiceProtocol,
		ContactName:        fake.FullName(),
		ContactEmail:       fake.EmailAddress(),
		SendNotifications:  true,
		Active:             true,
		Pln:                pln,
	}
	if hostPort != "" {
		host, port := SplitHostPort(hostPort)
		box.Hostname = host
		box.IpAddress = host
		box.Port = port
		box.WebServicePort = port
	}
	return box
}

// MakeContentProvider creates a mock content provider in pln.
func MakeContentProvider(pln *models.Pln) *models.ContentProvider {
	return &models.ContentProvider{
		Uuid:             uuid.NewV4().String(),
		PlnId:            pln.Id,
		Name:             fake.Company(),
		PluginIdentifier: "ca.sfu.lib.plugin.pkppln.PkpPlnPlugin",
		PermissionUrl:    fmt.Sprintf("http://%s/permission", fake.DomainName()),
		MaxFileSize:      1 << 30,
		MaxAuSize:        10 << 30,
	}
}

// MakeAu creates a mock AU in pln, belonging to provider.
func MakeAu(pln *models.Pln, provider *models.ContentProvider) *models.Au {
	au := &models.Au{
		PlnId:            pln.Id,
		PluginIdentifier: "ca.sfu.lib.plugin.pkppln.PkpPlnPlugin",
		Params: []models.AuParam{
			{Key: "base_url", Value: fmt.Sprintf("http://%s/", fake.DomainName())},
			{Key: "container_number", Value: fmt.Sprintf("%d", rand.Intn(100)+1)},
		},
		Comment: fake.Sentence(),
	}
	if provider != nil {
		au.ContentProviderId = provider.Id
		au.PluginIdentifier = provider.PluginIdentifier
	}
	au.Auid = au.LockssAuid()
	return au
}

// MakeDeposit creates a mock deposit in au that has never been checked.
func MakeDeposit(au *models.Au) *models.Deposit {
	_uuid := uuid.NewV4().String()
	return &models.Deposit{
		Uuid:              _uuid,
		AuId:              au.Id,
		ContentProviderId: au.ContentProviderId,
		Title:             fake.Sentence(),
		Url:               fmt.Sprintf("http://%s/deposit/%s.zip", fake.DomainName(), _uuid),
		ChecksumType:      "SHA1",
		ChecksumValue:     fmt.Sprintf("%X", sha1.Sum([]byte(_uuid))),
		Size:              int64(rand.Intn(1000000) + 1),
	}
}

// SplitHostPort splits "host:port" into its parts. It panics on bad
// input, which is fine for test fixtures.
func SplitHostPort(hostPort string) (string, int) {
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		panic(fmt.Sprintf("Bad host:port %s: %v", hostPort, err))
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		panic(fmt.Sprintf("Bad port in %s: %v", hostPort, err))
	}
	return host, port
}

// NewBoltStore returns a BoltStore backed by a temp file that is
// removed when the test finishes.
func NewBoltStore(t *testing.T) *storage.BoltStore {
	dir, err := os.MkdirTemp("", "lom_bolt_test")
	require.Nil(t, err)
	store, err := storage.NewBoltStore(filepath.Join(dir, "lom.db"))
	require.Nil(t, err)
	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(dir)
	})
	return store
}

// Network is a Pln with its boxes, one AU and some deposits, all
// saved in a store.
type Network struct {
	Pln      *models.Pln
	Boxes    []*models.Box
	Provider *models.ContentProvider
	Au       *models.Au
	Deposits []*models.Deposit
}

// MakeNetwork saves a Pln with one box per hostPort, one AU and
// depositCount unchecked deposits into importer.
func MakeNetwork(t *testing.T, importer storage.Importer, hostPorts []string, depositCount int) *Network {
	network := &Network{Pln: MakePln()}
	require.Nil(t, importer.SavePln(network.Pln))
	for _, hostPort := range hostPorts {
		box := MakeBox(network.Pln, hostPort)
		require.Nil(t, importer.SaveBox(box))
		network.Boxes = append(network.Boxes, box)
	}
	network.Provider = MakeContentProvider(network.Pln)
	require.Nil(t, importer.SaveContentProvider(network.Provider))
	network.Au = MakeAu(network.Pln, network.Provider)
	require.Nil(t, importer.SaveAu(network.Au))
	for i := 0; i < depositCount; i++ {
		deposit := MakeDeposit(network.Au)
		require.Nil(t, importer.SaveDeposit(deposit))
		network.Deposits = append(network.Deposits, deposit)
	}
	return network
}
