package transaction

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/textproto"

	"github.com/odvcencio/consonant/pkg/document"
)

// Encode returns the wire fields of an action.
func Encode(a Action) map[string]any {
	out := map[string]any{"action": a.Kind().String()}
	if id := a.ActionID(); id != "" {
		out["id"] = id
	}
	switch act := a.(type) {
	case *Begin:
		out["source"] = act.Source
	case *Commit:
		out["target"] = act.Target
		out["author"] = act.Author
		out["author-date"] = act.AuthorDate
		out["committer"] = act.Committer
		out["committer-date"] = act.CommitterDate
		out["message"] = act.Message
	case *Create:
		out["class"] = act.Class
		if len(act.Properties) > 0 {
			out["properties"] = act.Properties
		}
	case *Update:
		out["object"] = encodeObject(act.Object)
		if len(act.Properties) > 0 {
			out["properties"] = act.Properties
		}
	case *Delete:
		out["object"] = encodeObject(act.Object)
	case *UpdateRawProperty:
		out["object"] = encodeObject(act.Object)
		out["property"] = act.Property
		out["content-type"] = act.ContentType
		out["data"] = base64.StdEncoding.EncodeToString(act.Data)
		out["encoding"] = "base64"
	case *UnsetRawProperty:
		out["object"] = encodeObject(act.Object)
		out["property"] = act.Property
	default:
		panic(fmt.Sprintf("transaction: unhandled action %T", a))
	}
	return out
}

func encodeObject(r ObjectRef) map[string]any {
	if r.Action != "" {
		return map[string]any{"action": r.Action}
	}
	return map[string]any{"uuid": r.UUID}
}

// MarshalMultipart renders t as a multipart/mixed body with one YAML part
// per action. It returns the Content-Type header value and the body.
func MarshalMultipart(t *Transaction) (string, []byte, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, a := range t.Actions {
		doc, err := document.EncodeYAML(Encode(a))
		if err != nil {
			return "", nil, fmt.Errorf("marshal action %d: %w", i+1, err)
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", ContentTypeYAML)
		pw, err := w.CreatePart(h)
		if err != nil {
			return "", nil, fmt.Errorf("marshal action %d: %w", i+1, err)
		}
		if _, err := pw.Write(doc); err != nil {
			return "", nil, fmt.Errorf("marshal action %d: %w", i+1, err)
		}
	}
	if err := w.Close(); err != nil {
		return "", nil, fmt.Errorf("marshal transaction: %w", err)
	}
	contentType := mime.FormatMediaType("multipart/mixed", map[string]string{"boundary": w.Boundary()})
	return contentType, body.Bytes(), nil
}

// Marshal renders t as a MIME document that Parse accepts.
func Marshal(t *Transaction) ([]byte, error) {
	contentType, body, err := MarshalMultipart(t)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	fmt.Fprintf(&out, "MIME-Version: 1.0\r\nContent-Type: %s\r\n\r\n", contentType)
	out.Write(body)
	return out.Bytes(), nil
}
