package network

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/sfu-dhil/lockssomatic/constants"
	"github.com/warpfork/go-errcat"
)

// SoapParam is one child element of a SOAP operation. Value can be
// anything encoding/xml can marshal: a string, a number, a bool, or
// a struct with xml tags such as models.HasherParams.
type SoapParam struct {
	Name  string
	Value interface{}
}

// Param is shorthand for building a SoapParam.
func Param(name string, value interface{}) SoapParam {
	return SoapParam{Name: name, Value: value}
}

// BuildEnvelope returns a SOAP 1.1 request envelope for operation.
// The operation element is in the LOCKSS web service namespace, and
// its params are unqualified child elements, in order.
func BuildEnvelope(operation string, params ...SoapParam) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	encoder := xml.NewEncoder(&buf)
	envelope := xml.StartElement{
		Name: xml.Name{Local: "soapenv:Envelope"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:soapenv"}, Value: constants.SoapEnvelopeNamespace},
			{Name: xml.Name{Local: "xmlns:ws"}, Value: constants.LockssNamespace},
		},
	}
	header := xml.StartElement{Name: xml.Name{Local: "soapenv:Header"}}
	body := xml.StartElement{Name: xml.Name{Local: "soapenv:Body"}}
	opElement := xml.StartElement{Name: xml.Name{Local: "ws:" + operation}}

	tokens := []xml.Token{envelope, header, header.End(), body, opElement}
	for _, token := range tokens {
		if err := encoder.EncodeToken(token); err != nil {
			return nil, err
		}
	}
	for _, param := range params {
		start := xml.StartElement{Name: xml.Name{Local: param.Name}}
		if err := encoder.EncodeElement(param.Value, start); err != nil {
			return nil, fmt.Errorf("Cannot encode param %s of %s: %v", param.Name, operation, err)
		}
	}
	for _, token := range []xml.Token{opElement.End(), body.End(), envelope.End()} {
		if err := encoder.EncodeToken(token); err != nil {
			return nil, err
		}
	}
	if err := encoder.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type soapEnvelope struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    soapBody `xml:"Body"`
}

type soapBody struct {
	Fault   *SoapFault `xml:"Fault"`
	Content []byte     `xml:",innerxml"`
}

// SoapFault is a fault returned by the daemon in place of a response.
type SoapFault struct {
	Code   string `xml:"faultcode"`
	String string `xml:"faultstring"`
	Detail string `xml:"detail"`
}

func (fault *SoapFault) Error() string {
	if fault.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", fault.Code, fault.String, fault.Detail)
	}
	return fmt.Sprintf("%s: %s", fault.Code, fault.String)
}

type soapOperationResponse struct {
	XMLName xml.Name
	Returns []soapReturn `xml:"return"`
	Inner   []byte       `xml:",innerxml"`
}

type soapReturn struct {
	Inner []byte `xml:",innerxml"`
}

// SoapResponse is the decoded body of a successful SOAP call.
// Operations that return one value have one entry in Returns;
// list operations have one entry per item.
type SoapResponse struct {
	// Operation is the local name of the response element,
	// e.g. "getAuStatusResponse".
	Operation string

	// Returns holds the inner XML of each <return> element.
	Returns [][]byte

	// Raw is the inner XML of the whole response element.
	Raw []byte
}

// ParseEnvelope decodes a SOAP response envelope. A fault is returned
// as an ErrRemoteFault error; anything that isn't a SOAP envelope is
// an ErrProtocol error.
func ParseEnvelope(data []byte) (*SoapResponse, error) {
	envelope := &soapEnvelope{}
	if err := xml.Unmarshal(data, envelope); err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Response is not a SOAP envelope: %v", err)
	}
	if envelope.Body.Fault != nil {
		return nil, errcat.Errorf(lockssomatic.ErrRemoteFault,
			"SOAP fault: %s", envelope.Body.Fault.Error())
	}
	if len(bytes.TrimSpace(envelope.Body.Content)) == 0 {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol, "SOAP body is empty")
	}
	opResponse := &soapOperationResponse{}
	if err := xml.Unmarshal(envelope.Body.Content, opResponse); err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Cannot decode SOAP body: %v", err)
	}
	response := &SoapResponse{
		Operation: opResponse.XMLName.Local,
		Returns:   make([][]byte, len(opResponse.Returns)),
		Raw:       opResponse.Inner,
	}
	for i, ret := range opResponse.Returns {
		response.Returns[i] = ret.Inner
	}
	return response, nil
}

func wrapReturn(inner []byte) []byte {
	wrapped := make([]byte, 0, len(inner)+17)
	wrapped = append(wrapped, "<return>"...)
	wrapped = append(wrapped, inner...)
	return append(wrapped, "</return>"...)
}

// Decode unmarshals the first return value into v. If the response
// has no <return> element, the whole response element is decoded
// instead, since some daemon versions put the fields directly in the
// response.
func (response *SoapResponse) Decode(v interface{}) error {
	data := response.Raw
	if len(response.Returns) > 0 {
		data = response.Returns[0]
	}
	if err := xml.Unmarshal(wrapReturn(data), v); err != nil {
		return errcat.Errorf(lockssomatic.ErrProtocol,
			"Cannot decode %s into %T: %v", response.Operation, v, err)
	}
	return nil
}

// DecodeList unmarshals every return value, appending each to the
// slice that slicePtr points to.
func (response *SoapResponse) DecodeList(slicePtr interface{}) error {
	for _, ret := range response.Returns {
		if err := xml.Unmarshal(wrapReturn(ret), slicePtr); err != nil {
			return errcat.Errorf(lockssomatic.ErrProtocol,
				"Cannot decode %s into %T: %v", response.Operation, slicePtr, err)
		}
	}
	return nil
}

// String returns the first return value as text.
func (response *SoapResponse) String() (string, error) {
	var value string
	err := response.Decode(&value)
	return value, err
}

// Strings returns every return value as text.
func (response *SoapResponse) Strings() ([]string, error) {
	values := make([]string, 0, len(response.Returns))
	err := response.DecodeList(&values)
	return values, err
}

// Bool returns the first return value as a boolean.
func (response *SoapResponse) Bool() (bool, error) {
	var value bool
	err := response.Decode(&value)
	return value, err
}
