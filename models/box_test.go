package models_test

import (
	"testing"

	"github.com/sfu-dhil/lockssomatic/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getBox() *models.Box {
	return &models.Box{
		Id:                 7,
		PlnId:              1,
		Hostname:           "box1.example.com",
		Protocol:           "TCP",
		Port:               9729,
		WebServicePort:     8081,
		WebServiceProtocol: "http",
		Active:             true,
		Pln:                &models.Pln{Id: 1, Username: "lockss-u", Password: "lockss-p"},
	}
}

func TestBoxHostPort(t *testing.T) {
	box := getBox()
	assert.Equal(t, "box1.example.com:9729", box.HostPort())
	assert.Equal(t, "box1.example.com:9729", box.String())
}

func TestBoxServiceURL(t *testing.T) {
	box := getBox()
	assert.Equal(t, "http://box1.example.com:8081/ws/DaemonStatusService",
		box.ServiceURL("DaemonStatusService"))
	box.WebServiceProtocol = "https"
	assert.Equal(t, "https://box1.example.com:8081/ws/HasherService",
		box.ServiceURL("HasherService"))
	box.WebServiceProtocol = ""
	assert.Equal(t, "http://box1.example.com:8081/ws/ContentService",
		box.ServiceURL("ContentService"))
}

func TestBoxContentURL(t *testing.T) {
	box := getBox()
	box.WebServiceProtocol = "https"
	assert.Equal(t,
		"http://box1.example.com:8081/ServeContent?url=http%3A%2F%2Fexample.com%2Fdeposit%3Fid%3D1",
		box.ContentURL("http://example.com/deposit?id=1"))
}

func TestBoxCredentials(t *testing.T) {
	box := getBox()
	username, password, err := box.Credentials()
	require.Nil(t, err)
	assert.Equal(t, "lockss-u", username)
	assert.Equal(t, "lockss-p", password)

	box.Pln = nil
	_, _, err = box.Credentials()
	assert.NotNil(t, err)
}
