package network

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/op/go-logging"
	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/sfu-dhil/lockssomatic/util"
	"github.com/warpfork/go-errcat"
)

// Don't put error messages longer than this into status records.
const MAX_ERR_MSG_SIZE = 2048

// BoxClient calls the SOAP web services of LOCKSS boxes. One client
// serves every box; credentials come from each box's Pln. The client
// keeps no state between calls, so it's safe to share across
// goroutines.
type BoxClient struct {
	httpClient *http.Client
	transport  *http.Transport
	timeout    time.Duration
	logger     *logging.Logger
}

// NewBoxClient returns a client whose calls give up after timeout.
// The timeout covers connecting, the TLS handshake, waiting for
// response headers, and (for SOAP calls) reading the whole response.
func NewBoxClient(timeout time.Duration, acceptInvalidSSLCerts bool, logger *logging.Logger) *BoxClient {
	transport := &http.Transport{
		MaxIdleConnsPerHost: 4,
		DisableKeepAlives:   false,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ResponseHeaderTimeout: timeout,
		TLSHandshakeTimeout:   timeout,
	}
	if acceptInvalidSSLCerts {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	httpClient := &http.Client{
		Transport:     transport,
		CheckRedirect: RedirectHandler,
	}
	return &BoxClient{
		httpClient: httpClient,
		transport:  transport,
		timeout:    timeout,
		logger:     logger,
	}
}

// Timeout returns the per-call timeout.
func (client *BoxClient) Timeout() time.Duration {
	return client.timeout
}

// Call invokes operation on the named service of box. Unless the call
// is the readiness probe itself, the client first asks the daemon
// whether it's ready, and fails with ErrNotReady if it isn't.
//
// Errors are categorized with the lockssomatic error categories:
// ErrUnreachable for connection failures and timeouts, ErrNotReady,
// ErrRemoteFault for SOAP faults and HTTP errors, and ErrProtocol for
// responses we can't decode.
func (client *BoxClient) Call(ctx context.Context, box *models.Box, service, operation string, params ...SoapParam) (*SoapResponse, error) {
	if !(service == constants.DaemonStatusService && operation == "isDaemonReady") {
		ready, err := client.IsDaemonReady(ctx, box)
		if err != nil {
			return nil, err
		}
		if !ready {
			return nil, errcat.Errorf(lockssomatic.ErrNotReady,
				"Box %s is not ready", box.HostPort())
		}
	}
	return client.call(ctx, box, service, operation, params...)
}

// IsDaemonReady asks the box whether its daemon is ready to answer
// requests.
func (client *BoxClient) IsDaemonReady(ctx context.Context, box *models.Box) (bool, error) {
	response, err := client.call(ctx, box, constants.DaemonStatusService, "isDaemonReady")
	if err != nil {
		return false, err
	}
	return response.Bool()
}

func (client *BoxClient) call(ctx context.Context, box *models.Box, service, operation string, params ...SoapParam) (*SoapResponse, error) {
	username, password, err := box.Credentials()
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "%v", err)
	}
	envelope, err := BuildEnvelope(operation, params...)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol, "%v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, client.timeout)
	defer cancel()

	serviceUrl := box.ServiceURL(service)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceUrl, bytes.NewReader(envelope))
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig,
			"Cannot build request for %s: %v", serviceUrl, err)
	}
	request.Header.Set("Content-Type", "text/xml; charset=utf-8")
	request.Header.Set("Accept", "text/xml, multipart/related")
	request.Header.Set("SOAPAction", `""`)
	request.SetBasicAuth(username, password)

	client.logger.Debugf("Calling %s.%s on %s", service, operation, box.HostPort())
	data, response, err := client.doRequest(request)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrUnreachable,
			"%s.%s on %s failed: %v", service, operation, box.HostPort(), err)
	}

	xmlData, unwrapErr := UnwrapMultipart(response.Header.Get("Content-Type"), data)
	if response.StatusCode >= 400 {
		// SOAP 1.1 faults come back as 500s. Anything else is an
		// HTTP-level error, such as bad credentials.
		if unwrapErr == nil {
			if _, err := ParseEnvelope(xmlData); lockssomatic.CategoryOf(err) == lockssomatic.ErrRemoteFault {
				return nil, errcat.Errorf(lockssomatic.ErrRemoteFault,
					"%s.%s on %s: %v", service, operation, box.HostPort(), err)
			}
		}
		return nil, errcat.Errorf(lockssomatic.ErrRemoteFault,
			"%s.%s on %s returned HTTP %d: %s", service, operation, box.HostPort(),
			response.StatusCode, util.Truncate(string(data), MAX_ERR_MSG_SIZE))
	}
	if unwrapErr != nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"%s.%s on %s: %v", service, operation, box.HostPort(), unwrapErr)
	}
	soapResponse, err := ParseEnvelope(xmlData)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.CategoryOf(err),
			"%s.%s on %s: %v", service, operation, box.HostPort(), err)
	}
	return soapResponse, nil
}

// FetchContent requests the box's preserved copy of contentUrl from
// its ServeContent servlet. The caller must close the response body.
// Statuses other than 200 are returned as errors.
//
// Content can be any size, so there's no deadline on the whole
// download. Instead, reading the body fails with ErrUnreachable when
// the box sends nothing for the client's timeout.
func (client *BoxClient) FetchContent(ctx context.Context, box *models.Box, contentUrl string) (*http.Response, error) {
	username, password, err := box.Credentials()
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrConfig, "%v", err)
	}
	fetchUrl := box.ContentURL(contentUrl)
	fetchCtx, cancel := context.WithCancel(ctx)
	request, err := http.NewRequestWithContext(fetchCtx, http.MethodGet, fetchUrl, nil)
	if err != nil {
		cancel()
		return nil, errcat.Errorf(lockssomatic.ErrConfig,
			"Cannot build request for %s: %v", fetchUrl, err)
	}
	request.SetBasicAuth(username, password)
	client.logger.Debugf("Fetching %s from %s", contentUrl, box.HostPort())
	response, err := client.httpClient.Do(request)
	if err != nil {
		cancel()
		return nil, errcat.Errorf(lockssomatic.ErrUnreachable,
			"Fetching %s from %s failed: %v", contentUrl, box.HostPort(), err)
	}
	if response.StatusCode != http.StatusOK {
		data, _ := readResponse(response.Body)
		cancel()
		return nil, errcat.Errorf(lockssomatic.ErrRemoteFault,
			"Fetching %s from %s returned HTTP %d: %s", contentUrl, box.HostPort(),
			response.StatusCode, util.Truncate(string(data), MAX_ERR_MSG_SIZE))
	}
	response.Body = newIdleTimeoutBody(response.Body, client.timeout, cancel,
		fmt.Sprintf("%s from %s", contentUrl, box.HostPort()))
	return response, nil
}

// idleTimeoutBody cancels its request when no bytes arrive within
// timeout.
type idleTimeoutBody struct {
	body     io.ReadCloser
	timeout  time.Duration
	timer    *time.Timer
	cancel   context.CancelFunc
	what     string
	mutex    sync.Mutex
	timedOut bool
}

func newIdleTimeoutBody(body io.ReadCloser, timeout time.Duration, cancel context.CancelFunc, what string) *idleTimeoutBody {
	idle := &idleTimeoutBody{
		body:    body,
		timeout: timeout,
		cancel:  cancel,
		what:    what,
	}
	idle.timer = time.AfterFunc(timeout, idle.expire)
	return idle
}

func (idle *idleTimeoutBody) expire() {
	idle.mutex.Lock()
	idle.timedOut = true
	idle.mutex.Unlock()
	idle.cancel()
}

func (idle *idleTimeoutBody) Read(p []byte) (int, error) {
	n, err := idle.body.Read(p)
	if n > 0 {
		idle.timer.Reset(idle.timeout)
	}
	if err != nil && err != io.EOF {
		idle.mutex.Lock()
		timedOut := idle.timedOut
		idle.mutex.Unlock()
		if timedOut {
			return n, errcat.Errorf(lockssomatic.ErrUnreachable,
				"No data for %v while fetching %s", idle.timeout, idle.what)
		}
	}
	return n, err
}

func (idle *idleTimeoutBody) Close() error {
	idle.timer.Stop()
	err := idle.body.Close()
	idle.cancel()
	return err
}

// Reads the response body and returns a byte slice.
// You must read and close the response body, or the
// TCP connection will remain open for as long as
// our application runs.
func readResponse(body io.ReadCloser) (data []byte, err error) {
	if body != nil {
		data, err = io.ReadAll(body)
		body.Close()
	}
	return data, err
}

func (client *BoxClient) doRequest(request *http.Request) (data []byte, response *http.Response, err error) {
	response, err = client.httpClient.Do(request)
	if err != nil {
		return nil, nil, err
	}
	data, err = readResponse(response.Body)
	if err != nil {
		return nil, response, err
	}
	return data, response, err
}

// By default, the Go HTTP client does not send headers from the
// original request to the redirect location. Daemons behind a proxy
// sometimes redirect http to https, so we send all headers from the
// original request, but we'll send the auth header only if the host
// of the redirect URL matches the host of the original URL.
func RedirectHandler(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("too many redirects")
	}
	if len(via) == 0 {
		return nil
	}
	for attr, val := range via[0].Header {
		if _, ok := req.Header[attr]; !ok {
			if attr != "Authorization" || req.URL.Hostname() == via[0].URL.Hostname() {
				req.Header[attr] = val
			}
		}
	}
	return nil
}
