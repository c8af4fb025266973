package models

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

// Box is a single LOCKSS daemon in a Pln.
type Box struct {
	Id                 int64  `json:"id"`
	PlnId              int64  `json:"pln_id"`
	Hostname           string `json:"hostname"`
	IpAddress          string `json:"ip_address"`
	Protocol           string `json:"protocol"`
	Port               int    `json:"port"`
	WebServicePort     int    `json:"web_service_port"`
	WebServiceProtocol string `json:"web_service_protocol"`
	ContactName        string `json:"contact_name"`
	ContactEmail       string `json:"contact_email"`
	SendNotifications  bool   `json:"send_notifications"`
	Active             bool   `json:"active"`

	// Pln is the network this box belongs to. It's filled in by the
	// storage layer when boxes are loaded, and supplies the web service
	// credentials. It is never serialized with the box.
	Pln *Pln `json:"-"`
}

// HostPort returns "hostname:port", which is how boxes are identified
// in the status maps of AuStatus and DepositStatus records.
func (box *Box) HostPort() string {
	return net.JoinHostPort(box.Hostname, strconv.Itoa(box.Port))
}

// webServiceBase returns the scheme, host and port of the daemon's
// web server, e.g. "http://box1.example.com:8081".
func (box *Box) webServiceBase() string {
	protocol := box.WebServiceProtocol
	if protocol == "" {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s", protocol,
		net.JoinHostPort(box.Hostname, strconv.Itoa(box.WebServicePort)))
}

// ServiceURL returns the endpoint for the named LOCKSS web service.
// The WSDL for the service is at the same URL with ?wsdl appended.
func (box *Box) ServiceURL(serviceName string) string {
	return fmt.Sprintf("%s/ws/%s", box.webServiceBase(), serviceName)
}

// ContentURL returns the URL from which the box serves its preserved
// copy of depositUrl. Content is always fetched over plain HTTP.
func (box *Box) ContentURL(depositUrl string) string {
	return fmt.Sprintf("http://%s/ServeContent?url=%s",
		net.JoinHostPort(box.Hostname, strconv.Itoa(box.WebServicePort)),
		url.QueryEscape(depositUrl))
}

// Credentials returns the web service username and password for this
// box, which belong to its Pln.
func (box *Box) Credentials() (username, password string, err error) {
	if box.Pln == nil {
		return "", "", fmt.Errorf("Box %s has no Pln, so there are no credentials", box.HostPort())
	}
	return box.Pln.Username, box.Pln.Password, nil
}

// String returns the box's host:port, for log messages.
func (box *Box) String() string {
	return box.HostPort()
}
