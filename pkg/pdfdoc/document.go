// SPDX-License-Identifier: GPL-3.0-or-later
// Copyright (C) 2026 The signpdf-cmd Authors

// Package pdfdoc handles the local side of a signing session: reading and
// checking the input PDF, choosing the output path, writing the signed
// document and verifying it.
package pdfdoc

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/digitorus/pdf"
	"go.uber.org/zap"

	"signpdf-cmd/pkg/applog"
	"signpdf-cmd/pkg/protocol"
)

// Load reads path and checks the %PDF- header. The document structure is
// left to the DSS server: a file the local parser cannot read (encrypted,
// damaged xref) is only reported in the log. The document name is the file
// base name.
func Load(path string) (protocol.Document, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return protocol.Document{}, fmt.Errorf("ruta de entrada vacia")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return protocol.Document{}, fmt.Errorf("fichero %s no encontrado o ilegible: %w", path, err)
	}
	if !hasPDFHeader(data) {
		return protocol.Document{}, fmt.Errorf("%s no es un PDF valido: falta la cabecera %%PDF-", path)
	}
	log := applog.Named("pdf")
	if pages, err := PageCount(data); err != nil {
		log.Warn("el PDF no se pudo analizar localmente, se envia igualmente", zap.String("path", path), zap.Error(err))
	} else {
		log.Debug("PDF de entrada", zap.String("path", path), zap.Int("pages", pages), zap.Int("size", len(data)))
	}
	return protocol.Document{Name: filepath.Base(path), Bytes: data}, nil
}

func hasPDFHeader(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF-"))
}

// PageCount parses data and returns its number of pages.
func PageCount(data []byte) (pages int, err error) {
	if !hasPDFHeader(data) {
		return 0, fmt.Errorf("falta la cabecera %%PDF-")
	}
	defer func() {
		if r := recover(); r != nil {
			pages, err = 0, fmt.Errorf("estructura PDF corrupta: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	n := r.NumPage()
	if n < 1 {
		return 0, fmt.Errorf("el PDF no contiene paginas")
	}
	return n, nil
}
