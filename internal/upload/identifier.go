package upload

import (
	"regexp"
	"strconv"
)

var (
	reContentRange       = regexp.MustCompile(`^bytes (\d+)-(\d+)/(\d+)$`)
	reContentRangeStatus = regexp.MustCompile(`^bytes \*/(\d+)$`)
	reDeviceID           = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	reDecimalID          = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// Identifier names an uploadable: every measurement is named by
// (DeviceID, MeasurementID); every attachment additionally carries a
// positive AttachmentID.
type Identifier struct {
	DeviceID      string
	MeasurementID string
	AttachmentID  string // empty for a measurement
}

// IsAttachment reports whether this identifier names an attachment.
func (id Identifier) IsAttachment() bool {
	return id.AttachmentID != ""
}

// parseIdentifier validates the three identifier fields according to
// their canonical shapes: deviceId is a 36-character UUID, measurementId
// and attachmentId are positive decimal integers rendered as strings of
// at most 20 characters.
func parseIdentifier(deviceID, measurementID, attachmentID string) (Identifier, error) {
	if !reDeviceID.MatchString(deviceID) {
		return Identifier{}, ErrInvalidMetaData
	}
	if !reDecimalID.MatchString(measurementID) || measurementID == "0" {
		return Identifier{}, ErrInvalidMetaData
	}
	if attachmentID != "" {
		if !reDecimalID.MatchString(attachmentID) || attachmentID == "0" {
			return Identifier{}, ErrInvalidMetaData
		}
	}

	return Identifier{
		DeviceID:      deviceID,
		MeasurementID: measurementID,
		AttachmentID:  attachmentID,
	}, nil
}

// ContentRange is the structured form of the HTTP Content-Range header.
// It is used both to announce chunk coverage (bytes F-T/N) and to query
// status (bytes */N, represented here with From == To == -1).
type ContentRange struct {
	From  int64
	To    int64
	Total int64
}

// IsStatusQuery reports whether this ContentRange came from a status
// request (Content-Range: bytes */N) rather than a chunk request.
func (cr ContentRange) IsStatusQuery() bool {
	return cr.From < 0
}

// Size returns To - From + 1, the number of bytes this range covers.
// It is only meaningful for a chunk ContentRange, not a status query.
func (cr ContentRange) Size() int64 {
	return cr.To - cr.From + 1
}

// parseContentRange parses the strict "bytes F-T/N" form used by chunk
// requests. It rejects the "*" wildcard, which is reserved for status
// requests and handled by parseStatusContentRange instead.
func parseContentRange(header string) (ContentRange, error) {
	m := reContentRange.FindStringSubmatch(header)
	if m == nil {
		return ContentRange{}, ErrUnparsable
	}

	from, err1 := strconv.ParseInt(m[1], 10, 64)
	to, err2 := strconv.ParseInt(m[2], 10, 64)
	total, err3 := strconv.ParseInt(m[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return ContentRange{}, ErrUnparsable
	}

	if from > to || to >= total {
		return ContentRange{}, ErrUnparsable
	}

	return ContentRange{From: from, To: to, Total: total}, nil
}

// parseStatusContentRange parses the "bytes */N" form used by status
// requests.
func parseStatusContentRange(header string) (ContentRange, error) {
	m := reContentRangeStatus.FindStringSubmatch(header)
	if m == nil {
		return ContentRange{}, ErrUnparsable
	}

	total, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || total <= 0 {
		return ContentRange{}, ErrUnparsable
	}

	return ContentRange{From: -1, To: -1, Total: total}, nil
}
