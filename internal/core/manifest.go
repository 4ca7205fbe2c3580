package core

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ManifestPath is the archive entry name of the jar manifest.
const ManifestPath = "META-INF/MANIFEST.MF"

// DefaultManifestVersion is the only manifest format version emitted.
const DefaultManifestVersion = "1.0"

// Manifest holds the main attributes of a jar manifest.
type Manifest struct {
	Version   string
	MainClass string
	CreatedBy string
}

// NewManifest returns a version 1.0 manifest for mainClass.
func NewManifest(mainClass string) Manifest {
	return Manifest{Version: DefaultManifestVersion, MainClass: mainClass}
}

// Bytes renders the manifest in jar format: "Name: value" lines terminated
// by CRLF and a trailing blank line. Lines longer than 72 bytes are folded
// on a rune boundary with a leading space on continuation lines.
func (m Manifest) Bytes() ([]byte, error) {
	version := m.Version
	if version == "" {
		version = DefaultManifestVersion
	}
	if strings.ContainsAny(m.MainClass, "\r\n") || strings.ContainsAny(m.CreatedBy, "\r\n") {
		return nil, fmt.Errorf("manifest attribute contains a line break")
	}
	var buf bytes.Buffer
	writeAttr(&buf, "Manifest-Version", version)
	if m.CreatedBy != "" {
		writeAttr(&buf, "Created-By", m.CreatedBy)
	}
	if m.MainClass != "" {
		writeAttr(&buf, "Main-Class", m.MainClass)
	}
	buf.WriteString("\r\n")
	return buf.Bytes(), nil
}

func writeAttr(buf *bytes.Buffer, name, value string) {
	line := name + ": " + value
	const max = 72
	first := true
	for len(line) > 0 {
		limit := max
		if !first {
			limit = max - 1
			buf.WriteByte(' ')
		}
		if len(line) <= limit {
			buf.WriteString(line)
			break
		}
		cut := limit
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		buf.WriteString(line[:cut])
		buf.WriteString("\r\n")
		line = line[cut:]
		first = false
	}
	buf.WriteString("\r\n")
}
