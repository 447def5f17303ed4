package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
)

// OutputTarget is one <transferItem> of a project file's <txlist>.
type OutputTarget struct {
	Addr string
	Port int
	Type string // "udp" or "tcp"
	Mask uint32 // rbc.Flag* bits
}

// ParseOutputTargets reads the output target list from a project XML file.
// Items outside <txlist> are ignored, as are items without a usable port.
func ParseOutputTargets(path string) ([]OutputTarget, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project file: %w", err)
	}
	defer f.Close()
	return parseOutputTargets(f)
}

func parseOutputTargets(r io.Reader) ([]OutputTarget, error) {
	targets := []OutputTarget{}
	dec := xml.NewDecoder(r)
	inTxList := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return targets, fmt.Errorf("parse project file: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "txlist" {
				inTxList = true
				continue
			}
			if t.Name.Local != "transferItem" || !inTxList {
				continue
			}
			addr, _ := attrValue(t, "addr")
			portStr, _ := attrValue(t, "port")
			typ, _ := attrValue(t, "type")
			maskStr, _ := attrValue(t, "data")

			port, err := strconv.Atoi(portStr)
			if err != nil || port <= 0 || port > 65535 {
				continue
			}
			// data is decimal, e.g. "50331649"
			mask, _ := strconv.ParseUint(maskStr, 10, 32)
			if typ == "" {
				typ = "udp"
			}
			targets = append(targets, OutputTarget{
				Addr: addr,
				Port: port,
				Type: typ,
				Mask: uint32(mask),
			})
		case xml.EndElement:
			if t.Name.Local == "txlist" {
				inTxList = false
			}
		}
	}
	return targets, nil
}

func attrValue(start xml.StartElement, name string) (string, bool) {
	for _, a := range start.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
