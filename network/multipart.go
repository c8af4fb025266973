package network

import (
	"bytes"
	"encoding/xml"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"strings"

	"github.com/sfu-dhil/lockssomatic"
	"github.com/warpfork/go-errcat"
)

const xopNamespace = "http://www.w3.org/2004/08/xop/include"

// mimePart is one part of a multipart (MTOM/XOP) response.
type mimePart struct {
	contentType string
	contentId   string
	data        []byte
}

func (part *mimePart) isXml() bool {
	return strings.Contains(strings.ToLower(part.contentType), "xml")
}

// UnwrapMultipart returns the SOAP envelope from a daemon response.
//
// The hasher and some content operations answer with an MTOM
// multipart response: the envelope is one part, and binary payloads
// are attachments referenced by xop:Include elements. For those we
// pick the envelope part, replace each xop:Include with the text of
// the attachment it references, and remove any dataHandler elements.
// Plain XML responses are returned unchanged. Anything else is an
// ErrProtocol error.
func UnwrapMultipart(contentType string, body []byte) ([]byte, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Cannot parse response content type '%s': %v", contentType, err)
	}
	if !strings.HasPrefix(mediaType, "multipart/") {
		if strings.Contains(mediaType, "xml") {
			return body, nil
		}
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Response is neither XML nor multipart: %s", mediaType)
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Multipart response has no boundary: %s", contentType)
	}
	parts, err := readParts(body, boundary)
	if err != nil {
		return nil, err
	}
	root := selectRootPart(parts, params["start"])
	if root == nil {
		return nil, errcat.Errorf(lockssomatic.ErrProtocol,
			"Multipart response has no XML part")
	}
	attachments := make(map[string][]byte)
	for _, part := range parts {
		if part != root && part.contentId != "" {
			attachments[part.contentId] = part.data
		}
	}
	return rewriteXml(root.data, attachments)
}

func readParts(body []byte, boundary string) ([]*mimePart, error) {
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	parts := make([]*mimePart, 0)
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errcat.Errorf(lockssomatic.ErrProtocol,
				"Cannot read multipart response: %v", err)
		}
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, errcat.Errorf(lockssomatic.ErrProtocol,
				"Cannot read multipart response part: %v", err)
		}
		parts = append(parts, &mimePart{
			contentType: part.Header.Get("Content-Type"),
			contentId:   normalizeContentId(part.Header.Get("Content-ID")),
			data:        data,
		})
	}
	return parts, nil
}

// normalizeContentId strips the angle brackets from a Content-ID
// header, or the cid: prefix and URL escaping from an href, so the
// two can be compared.
func normalizeContentId(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(strings.ToLower(id), "cid:") {
		id = id[4:]
		if unescaped, err := url.PathUnescape(id); err == nil {
			id = unescaped
		}
	}
	return strings.TrimSuffix(strings.TrimPrefix(id, "<"), ">")
}

// selectRootPart returns the part holding the SOAP envelope: the part
// named by the start parameter if there is one, else the first XML
// part that mentions a dataHandler, else the first XML part.
func selectRootPart(parts []*mimePart, start string) *mimePart {
	if start != "" {
		startId := normalizeContentId(start)
		for _, part := range parts {
			if part.contentId == startId {
				return part
			}
		}
	}
	var firstXml *mimePart
	for _, part := range parts {
		if !part.isXml() {
			continue
		}
		if bytes.Contains(bytes.ToLower(part.data), []byte("datahandler")) {
			return part
		}
		if firstXml == nil {
			firstXml = part
		}
	}
	return firstXml
}

// xmlEdit replaces data[start:end] with replacement.
type xmlEdit struct {
	start       int64
	end         int64
	replacement []byte
}

// rewriteXml removes dataHandler elements from data and replaces
// xop:Include elements with the escaped text of their attachments.
func rewriteXml(data []byte, attachments map[string][]byte) ([]byte, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	edits := make([]xmlEdit, 0)
	for {
		offset := decoder.InputOffset()
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errcat.Errorf(lockssomatic.ErrProtocol,
				"Multipart response has malformed XML: %v", err)
		}
		start, ok := token.(xml.StartElement)
		if !ok {
			continue
		}
		isDataHandler := start.Name.Local == "dataHandler"
		isInclude := start.Name.Local == "Include" &&
			(start.Name.Space == xopNamespace || start.Name.Space == "xop")
		if !isDataHandler && !isInclude {
			continue
		}
		if err := decoder.Skip(); err != nil {
			return nil, errcat.Errorf(lockssomatic.ErrProtocol,
				"Multipart response has malformed XML: %v", err)
		}
		edit := xmlEdit{start: offset, end: decoder.InputOffset()}
		if isInclude {
			edit.replacement = escapeText(attachments[includeHref(start)])
		}
		edits = append(edits, edit)
	}
	if len(edits) == 0 {
		return data, nil
	}
	var buf bytes.Buffer
	var last int64
	for _, edit := range edits {
		buf.Write(data[last:edit.start])
		buf.Write(edit.replacement)
		last = edit.end
	}
	buf.Write(data[last:])
	return buf.Bytes(), nil
}

func includeHref(start xml.StartElement) string {
	for _, attr := range start.Attr {
		if attr.Name.Local == "href" {
			return normalizeContentId(attr.Value)
		}
	}
	return ""
}

// escapeText escapes markup in an inlined attachment. Line breaks are
// kept as they are, since block files are line oriented.
func escapeText(data []byte) []byte {
	var buf bytes.Buffer
	for _, b := range data {
		switch b {
		case '&':
			buf.WriteString("&amp;")
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		default:
			buf.WriteByte(b)
		}
	}
	return buf.Bytes()
}
