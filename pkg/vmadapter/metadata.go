package vmadapter

import (
	"encoding/xml"
	"strings"

	"github.com/cuemby/beacond/pkg/types"
)

// metadataURI identifies beacond's custom domain-metadata element,
// kept unchanged from the dalidock project this label scheme
// originates from so existing domain XML written for it keeps working.
const metadataURI = "http://github.com/lionelnicolas/dalidock"

// metadataElement is the <labels> element under that URI, with every
// attribute read as a label key/value pair.
type metadataElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// parseLabels decodes a domain's <labels/> metadata element into a
// Labels map. An empty raw string (no metadata present) yields an
// empty map, not an error — the caller is expected to have already
// swallowed libvirt's "no such metadata" error before calling this.
func parseLabels(raw string) (types.Labels, error) {
	if strings.TrimSpace(raw) == "" {
		return types.Labels{}, nil
	}

	var el metadataElement
	if err := xml.Unmarshal([]byte(raw), &el); err != nil {
		return nil, err
	}

	labels := make(types.Labels, len(el.Attrs))
	for _, attr := range el.Attrs {
		labels[attr.Name.Local] = attr.Value
	}
	return labels, nil
}

// noMetadataErrorCode is libvirt's VIR_ERR_NO_DOMAIN_METADATA code,
// returned by DomainGetMetadata when no metadata of the requested type
// has ever been set. Not an operational error: it just means the
// domain carries no beacond labels.
const noMetadataErrorCode = 80

// isNoMetadataError reports whether err is libvirt's "no such
// metadata" response, by matching the RPC error code libvirt sends
// rather than a string comparison on its message.
func isNoMetadataError(err error) bool {
	if err == nil {
		return false
	}
	type libvirtErrorCode interface {
		Code() uint32
	}
	if lverr, ok := err.(libvirtErrorCode); ok {
		return lverr.Code() == noMetadataErrorCode
	}
	// Fall back to matching the well-known message fragment when the
	// client library doesn't expose a typed error code.
	return strings.Contains(err.Error(), "metadata not found")
}
