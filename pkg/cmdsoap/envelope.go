// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

package cmdsoap

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

const (
	nsEnvelope  = "http://schemas.xmlsoap.org/soap/envelope/"
	nsService   = "http://Ama.Authentication.Service/"
	nsStructure = "http://schemas.datacontract.org/2004/07/Ama.Structures.CCMovelSignature"

	actionPrefix = "http://Ama.Authentication.Service/CCMovelDigitalSignature/"
)

// field is one child element of an operation, in wire order.
type field struct {
	name  string
	value string
}

// buildEnvelope renders a SOAP 1.1 request for op. Elements of the service
// namespace use the "ama" prefix; data contract members use "ccm".
func buildEnvelope(op string, wrapper string, fields []field) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("soapenv:Envelope")
	env.CreateAttr("xmlns:soapenv", nsEnvelope)
	env.CreateAttr("xmlns:ama", nsService)
	if wrapper != "" {
		env.CreateAttr("xmlns:ccm", nsStructure)
	}
	env.CreateElement("soapenv:Header")
	body := env.CreateElement("soapenv:Body")

	parent := body.CreateElement("ama:" + op)
	prefix := "ama:"
	if wrapper != "" {
		parent = parent.CreateElement("ama:" + wrapper)
		prefix = "ccm:"
	}
	for _, f := range fields {
		parent.CreateElement(prefix + f.name).SetText(f.value)
	}

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("no se pudo serializar el sobre SOAP %s: %w", op, err)
	}
	return out, nil
}

// fault is a decoded SOAP 1.1 Fault.
type fault struct {
	Code   string
	String string
	Detail string
}

// parseEnvelope returns the first child of the SOAP Body, or the Fault found
// there. Lookups match local names so any namespace prefix is accepted.
func parseEnvelope(raw []byte) (*etree.Element, *fault, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, nil, fmt.Errorf("XML ilegible: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "Envelope" {
		return nil, nil, fmt.Errorf("falta soap:Envelope")
	}
	body := root.SelectElement("Body")
	if body == nil {
		return nil, nil, fmt.Errorf("falta soap:Body")
	}
	children := body.ChildElements()
	if len(children) == 0 {
		return nil, nil, fmt.Errorf("soap:Body vacio")
	}
	first := children[0]
	if first.Tag == "Fault" {
		return nil, &fault{
			Code:   childText(first, "faultcode"),
			String: childText(first, "faultstring"),
			Detail: strings.TrimSpace(deepText(first.SelectElement("detail"))),
		}, nil
	}
	return first, nil, nil
}

// childText returns the trimmed text of the named direct child, "" if absent.
func childText(el *etree.Element, name string) string {
	if el == nil {
		return ""
	}
	c := el.SelectElement(name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func deepText(el *etree.Element) string {
	if el == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(el.Text())
	for _, c := range el.ChildElements() {
		b.WriteString(deepText(c))
	}
	return b.String()
}

// isNil reports xsi:nil="true" on el.
func isNil(el *etree.Element) bool {
	if el == nil {
		return true
	}
	for _, a := range el.Attr {
		if a.Key == "nil" && strings.EqualFold(strings.TrimSpace(a.Value), "true") {
			return true
		}
	}
	return false
}

// encodeApplicationID renders the application id as xsd:base64Binary of its
// UTF-8 bytes.
func encodeApplicationID(id string) string {
	return base64.StdEncoding.EncodeToString([]byte(id))
}
