package testutil

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"

	"github.com/sfu-dhil/lockssomatic/models"
)

// FakeDaemon is an httptest server that answers the LOCKSS web
// service calls we make, and serves content from ServeContent. Set
// its fields before making calls; they are read on every request.
type FakeDaemon struct {
	Server *httptest.Server

	Username string
	Password string

	// Ready is the answer to isDaemonReady.
	Ready bool

	// Hashes maps deposit URLs to the hash the daemon reports.
	// URLs not in the map get a hasher error message.
	Hashes map[string]string

	// Multipart makes hash responses MTOM multipart, with the block
	// file as an attachment. Otherwise the block file is inlined as
	// base64.
	Multipart bool

	// Faults maps operation names to fault strings. An operation in
	// this map answers with a SOAP fault.
	Faults map[string]string

	AuStatus         *models.AuStatusResult
	AuSummaries      []*models.AuSummary
	AuUrls           []string
	CachedUrls       map[string]bool
	RepositorySpaces []*models.RepositorySpace
	Platform         *models.PlatformStatus
	Polls            []*models.PollStatus
	Votes            []*models.VoteStatus

	// Content maps deposit URLs to the bytes ServeContent returns.
	Content map[string][]byte

	// OnCall, if set, runs before each operation is answered.
	OnCall func(operation string)

	mutex sync.Mutex
	calls map[string]int
}

// NewFakeDaemon starts a ready daemon that accepts username/password.
// Close it with daemon.Close().
func NewFakeDaemon(username, password string) *FakeDaemon {
	daemon := &FakeDaemon{
		Username:   username,
		Password:   password,
		Ready:      true,
		Hashes:     make(map[string]string),
		Faults:     make(map[string]string),
		CachedUrls: make(map[string]bool),
		Content:    make(map[string][]byte),
		calls:      make(map[string]int),
	}
	daemon.Server = httptest.NewServer(http.HandlerFunc(daemon.handle))
	return daemon
}

// HostPort returns the daemon's host:port, suitable for MakeBox.
func (daemon *FakeDaemon) HostPort() string {
	return strings.TrimPrefix(daemon.Server.URL, "http://")
}

func (daemon *FakeDaemon) Close() {
	daemon.Server.Close()
}

// Calls returns the number of times operation was called. ServeContent
// requests are counted under "ServeContent".
func (daemon *FakeDaemon) Calls(operation string) int {
	daemon.mutex.Lock()
	defer daemon.mutex.Unlock()
	return daemon.calls[operation]
}

func (daemon *FakeDaemon) count(operation string) {
	daemon.mutex.Lock()
	daemon.calls[operation]++
	daemon.mutex.Unlock()
	if daemon.OnCall != nil {
		daemon.OnCall(operation)
	}
}

func (daemon *FakeDaemon) handle(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok || username != daemon.Username || password != daemon.Password {
		w.Header().Set("WWW-Authenticate", `Basic realm="LOCKSS Admin"`)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if r.Method == http.MethodGet && r.URL.Path == "/ServeContent" {
		daemon.count("ServeContent")
		content, ok := daemon.Content[r.URL.Query().Get("url")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(content)
		return
	}
	if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/ws/") {
		http.NotFound(w, r)
		return
	}
	body, _ := io.ReadAll(r.Body)
	operation, params := parseSoapRequest(body)
	daemon.count(operation)
	if fault, ok := daemon.Faults[operation]; ok {
		writeSoap(w, http.StatusInternalServerError, fmt.Sprintf(
			`<S:Fault><faultcode>S:Server</faultcode><faultstring>%s</faultstring></S:Fault>`,
			escape(fault)))
		return
	}
	switch operation {
	case "isDaemonReady":
		daemon.writeReturns(w, operation, fmt.Sprintf("%t", daemon.Ready))
	case "getAuStatus":
		daemon.writeReturns(w, operation, marshalInner(daemon.AuStatus))
	case "getAuIds":
		returns := make([]string, len(daemon.AuSummaries))
		for i, summary := range daemon.AuSummaries {
			returns[i] = marshalInner(summary)
		}
		daemon.writeReturns(w, operation, returns...)
	case "getAuUrls":
		returns := make([]string, len(daemon.AuUrls))
		for i, url := range daemon.AuUrls {
			returns[i] = escape(url)
		}
		daemon.writeReturns(w, operation, returns...)
	case "isUrlCached":
		daemon.writeReturns(w, operation, fmt.Sprintf("%t", daemon.CachedUrls[params["url"]]))
	case "hash":
		daemon.writeHash(w, params["url"])
	case "getPlatformConfiguration":
		daemon.writeReturns(w, operation, marshalInner(daemon.Platform))
	case "queryRepositorySpaces":
		returns := make([]string, len(daemon.RepositorySpaces))
		for i, space := range daemon.RepositorySpaces {
			returns[i] = marshalInner(space)
		}
		daemon.writeReturns(w, operation, returns...)
	case "queryPolls":
		returns := make([]string, len(daemon.Polls))
		for i, poll := range daemon.Polls {
			returns[i] = marshalInner(poll)
		}
		daemon.writeReturns(w, operation, returns...)
	case "queryVotes":
		returns := make([]string, len(daemon.Votes))
		for i, vote := range daemon.Votes {
			returns[i] = marshalInner(vote)
		}
		daemon.writeReturns(w, operation, returns...)
	default:
		writeSoap(w, http.StatusInternalServerError, fmt.Sprintf(
			`<S:Fault><faultcode>S:Client</faultcode><faultstring>Unknown operation %s</faultstring></S:Fault>`,
			escape(operation)))
	}
}

// BlockFile returns a V3 block hash listing reporting hash for url,
// in the format the daemon's hasher writes.
func BlockFile(url, hash string) string {
	return fmt.Sprintf("# Block hashes from fake-daemon\n"+
		"# AU: Fake AU\n"+
		"# Hash algorithm: SHA-1\n"+
		"# Encoding: Hex\n"+
		"\n"+
		"%s   %s\n"+
		"# end\n", hash, url)
}

func (daemon *FakeDaemon) writeHash(w http.ResponseWriter, url string) {
	hash, ok := daemon.Hashes[url]
	if !ok {
		daemon.writeReturns(w, "hash", fmt.Sprintf(
			`<errorMessage>No AU contains URL %s</errorMessage><status>Error</status>`, escape(url)))
		return
	}
	blockFile := BlockFile(url, hash)
	if !daemon.Multipart {
		daemon.writeReturns(w, "hash", fmt.Sprintf(
			`<blockFileDataHandler>%s</blockFileDataHandler><blockFileName>block.txt</blockFileName>`+
				`<bytesHashed>11</bytesHashed><filesHashed>1</filesHashed><status>Done</status>`,
			base64.StdEncoding.EncodeToString([]byte(blockFile))))
		return
	}
	envelope := soapEnvelope(
		`<ns2:hashResponse xmlns:ns2="http://ws.lockss.org/"><return>` +
			`<blockFileDataHandler><xop:Include xmlns:xop="http://www.w3.org/2004/08/xop/include" href="cid:block-1@ws.lockss.org"/></blockFileDataHandler>` +
			`<blockFileName>block.txt</blockFileName><bytesHashed>11</bytesHashed>` +
			`<filesHashed>1</filesHashed><status>Done</status></return></ns2:hashResponse>`)
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	rootHeader := textproto.MIMEHeader{}
	rootHeader.Set("Content-Type", `application/xop+xml; charset=utf-8; type="text/xml"`)
	rootHeader.Set("Content-ID", "<root.message@cxf.apache.org>")
	part, _ := writer.CreatePart(rootHeader)
	part.Write([]byte(envelope))
	attachmentHeader := textproto.MIMEHeader{}
	attachmentHeader.Set("Content-Type", "application/octet-stream")
	attachmentHeader.Set("Content-ID", "<block-1@ws.lockss.org>")
	part, _ = writer.CreatePart(attachmentHeader)
	part.Write([]byte(blockFile))
	writer.Close()
	w.Header().Set("Content-Type", fmt.Sprintf(
		`multipart/related; type="application/xop+xml"; boundary="%s"; start="<root.message@cxf.apache.org>"; start-info="text/xml"`,
		writer.Boundary()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (daemon *FakeDaemon) writeReturns(w http.ResponseWriter, operation string, returns ...string) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<ns2:%sResponse xmlns:ns2="http://ws.lockss.org/">`, operation)
	for _, ret := range returns {
		fmt.Fprintf(&buf, "<return>%s</return>", ret)
	}
	fmt.Fprintf(&buf, `</ns2:%sResponse>`, operation)
	writeSoap(w, http.StatusOK, buf.String())
}

func soapEnvelope(body string) string {
	return `<?xml version="1.0" ?><S:Envelope xmlns:S="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<S:Body>` + body + `</S:Body></S:Envelope>`
}

func writeSoap(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, soapEnvelope(body))
}

// marshalInner returns the XML of v's fields, without an enclosing
// element.
func marshalInner(v interface{}) string {
	if v == nil {
		return ""
	}
	data, err := xml.Marshal(v)
	if err != nil {
		panic(err)
	}
	inner := string(data)
	open := strings.Index(inner, ">")
	close := strings.LastIndex(inner, "<")
	if open < 0 || close <= open {
		return ""
	}
	return inner[open+1 : close]
}

func escape(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// parseSoapRequest returns the operation name and the text of every
// leaf element in the request body, by local name.
func parseSoapRequest(body []byte) (string, map[string]string) {
	decoder := xml.NewDecoder(bytes.NewReader(body))
	params := make(map[string]string)
	operation := ""
	inBody := false
	var current string
	for {
		token, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "Body" {
				inBody = true
			} else if inBody && operation == "" {
				operation = t.Name.Local
			} else {
				current = t.Name.Local
			}
		case xml.CharData:
			if current != "" {
				params[current] += string(t)
			}
		case xml.EndElement:
			current = ""
		}
	}
	return operation, params
}
