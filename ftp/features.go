package ftp

import "strings"

// Capabilities is the server capability set discovered from FEAT.
type Capabilities struct {
	MDTM bool
	Size bool
	UTF8 bool
	MLst bool

	// Per-fact MLST flags; set for facts the server marks active ("*").
	MLstModify bool
	MLstPerm   bool
	MLstSize   bool
	MLstType   bool
}

// Features discovers the server capability set with FEAT, caching the
// result for the lifetime of the connection. Servers without FEAT
// (502/500) yield an empty capability set, not an error.
func (c *Client) Features() (*Capabilities, error) {
	if c.caps != nil {
		return c.caps, nil
	}

	reply, err := c.command("FEAT")
	if err != nil {
		return nil, err
	}
	switch reply.Code {
	case 211:
		c.caps = parseFeatures(reply.Lines)
	case 500, 502:
		c.caps = &Capabilities{}
	default:
		return nil, &ProtocolError{Command: "FEAT", Reply: reply.FirstLine(), Code: reply.Code}
	}
	return c.caps, nil
}

// parseFeatures walks the 211 block. Feature lines are indented per
// RFC 2389; some servers repeat the "211-" prefix instead. Unknown
// features are ignored.
func parseFeatures(lines []string) *Capabilities {
	caps := &Capabilities{}
	for _, line := range lines {
		var feat string
		switch {
		case strings.HasPrefix(line, " "):
			feat = strings.TrimSpace(line)
		case len(line) >= 4 && line[:3] == "211" && (line[3] == '-' || line[3] == ' '):
			// Status framing line, or a "211-FEAT" style server.
			feat = strings.TrimSpace(line[4:])
			if feat == "" || strings.EqualFold(feat, "END") ||
				strings.Contains(strings.ToLower(feat), "features") ||
				strings.Contains(strings.ToLower(feat), "extensions") {
				continue
			}
		default:
			continue
		}

		name, params, _ := strings.Cut(feat, " ")
		switch strings.ToUpper(name) {
		case "MDTM":
			caps.MDTM = true
		case "SIZE":
			caps.Size = true
		case "UTF8":
			caps.UTF8 = true
		case "MLST":
			caps.MLst = true
			parseMLstFacts(params, caps)
		}
	}
	return caps
}

// parseMLstFacts reads the fact list of an MLST feature line, e.g.
// "modify*;perm;size*;type*;unique". A trailing '*' marks the fact as
// currently active.
func parseMLstFacts(params string, caps *Capabilities) {
	for _, fact := range strings.Split(params, ";") {
		fact = strings.TrimSpace(fact)
		active := strings.HasSuffix(fact, "*")
		if !active {
			continue
		}
		switch strings.ToLower(strings.TrimSuffix(fact, "*")) {
		case "modify":
			caps.MLstModify = true
		case "perm":
			caps.MLstPerm = true
		case "size":
			caps.MLstSize = true
		case "type":
			caps.MLstType = true
		}
	}
}
