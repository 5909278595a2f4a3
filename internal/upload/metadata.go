package upload

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// currentFormatVersion is the only ApplicationMeta.FormatVersion value
// accepted as up to date. Lower values are deprecated (the upload is
// skipped); any other value is unknown (the metadata is invalid).
const currentFormatVersion = 3

// MetaData field names, shared verbatim between the header and JSON body
// extraction paths so that both yield identical Uploadable values for the
// same logical input.
const (
	fieldDeviceID      = "deviceId"
	fieldMeasurementID = "measurementId"
	fieldAttachmentID  = "attachmentId"
	fieldDeviceType    = "deviceType"
	fieldOSVersion     = "osVersion"
	fieldAppVersion    = "appVersion"
	fieldLength        = "length"
	fieldLocationCount = "locationCount"
	fieldStartLocLat   = "startLocLat"
	fieldStartLocLon   = "startLocLon"
	fieldStartLocTS    = "startLocTS"
	fieldEndLocLat     = "endLocLat"
	fieldEndLocLon     = "endLocLon"
	fieldEndLocTS      = "endLocTS"
	fieldModality      = "modality"
	fieldFormatVersion = "formatVersion"
	fieldLogCount      = "logCount"
	fieldImageCount    = "imageCount"
	fieldVideoCount    = "videoCount"
	fieldFilesSize     = "filesSize"
)

// GeoLocation is a single recorded position.
type GeoLocation struct {
	TimestampMS int64
	Lat         float64
	Lon         float64
}

// DeviceMeta describes the recording device.
type DeviceMeta struct {
	OSVersion  string
	DeviceType string
}

// ApplicationMeta describes the client application that produced the data.
type ApplicationMeta struct {
	AppVersion    string
	FormatVersion int
}

// MeasurementMeta describes a measurement's track.
type MeasurementMeta struct {
	Length        float64
	LocationCount int
	StartLocation *GeoLocation
	EndLocation   *GeoLocation
	Modality      string
}

// AttachmentMeta describes the non-location data bundled with an upload.
type AttachmentMeta struct {
	LogCount   int
	ImageCount int
	VideoCount int
	FilesSize  int64
}

// Uploadable is the tagged variant of the two things that can be uploaded:
// a measurement or one of its attachments. Which case this is is
// determined entirely by Identifier.IsAttachment.
type Uploadable struct {
	Identifier      Identifier
	Device          DeviceMeta
	Application     ApplicationMeta
	Measurement     MeasurementMeta
	Attachment      AttachmentMeta
	hasAttachmentMD bool
}

// fieldLookup retrieves a named metadata field's raw string value. Both
// the header-based and the JSON-body-based extraction paths are reduced
// to this single shape so the rest of the validator is written once.
type fieldLookup func(name string) (string, bool)

func headerLookup(h http.Header) fieldLookup {
	return func(name string) (string, bool) {
		v := h.Get(name)
		if v == "" {
			return "", false
		}
		return v, true
	}
}

func jsonLookup(body []byte) (fieldLookup, error) {
	fields := make(map[string]string)
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, ErrUnparsable
	}

	return func(name string) (string, bool) {
		v, ok := fields[name]
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}, nil
}

// FromHeaders builds an Uploadable from a MultiMap-shaped set of request
// headers. isAttachmentUpload selects which AttachmentMeta parsing mode
// is used (strict for attachment uploads, lenient-zeros for measurements).
func FromHeaders(h http.Header, isAttachmentUpload bool) (Uploadable, error) {
	return buildUploadable(headerLookup(h), isAttachmentUpload)
}

// FromJSON builds an Uploadable from a JSON request body, using the same
// field names as FromHeaders.
func FromJSON(body []byte, isAttachmentUpload bool) (Uploadable, error) {
	lookup, err := jsonLookup(body)
	if err != nil {
		return Uploadable{}, err
	}
	return buildUploadable(lookup, isAttachmentUpload)
}

// IdentifierFromHeaders extracts just the identifier fields (deviceId,
// measurementId, and attachmentId when isAttachmentUpload) from request
// headers, without requiring the rest of the metadata block. A status
// request only carries these plus Content-Range, so it must not be run
// through the full buildUploadable validation chain.
func IdentifierFromHeaders(h http.Header, isAttachmentUpload bool) (Identifier, error) {
	get := headerLookup(h)

	deviceID, _ := get(fieldDeviceID)
	measurementID, _ := get(fieldMeasurementID)
	attachmentID := ""
	if isAttachmentUpload {
		attachmentID, _ = get(fieldAttachmentID)
	}

	return parseIdentifier(deviceID, measurementID, attachmentID)
}

func buildUploadable(get fieldLookup, isAttachmentUpload bool) (Uploadable, error) {
	deviceID, _ := get(fieldDeviceID)
	measurementID, _ := get(fieldMeasurementID)
	attachmentID := ""
	if isAttachmentUpload {
		attachmentID, _ = get(fieldAttachmentID)
	}

	id, err := parseIdentifier(deviceID, measurementID, attachmentID)
	if err != nil {
		return Uploadable{}, err
	}

	device, err := parseDeviceMeta(get)
	if err != nil {
		return Uploadable{}, err
	}

	app, err := parseApplicationMeta(get)
	if err != nil {
		return Uploadable{}, err
	}

	measurement, err := parseMeasurementMeta(get)
	if err != nil {
		return Uploadable{}, err
	}

	attachment, hasAttachmentMD, err := parseAttachmentMeta(get, isAttachmentUpload)
	if err != nil {
		return Uploadable{}, err
	}

	return Uploadable{
		Identifier:      id,
		Device:          device,
		Application:     app,
		Measurement:     measurement,
		Attachment:      attachment,
		hasAttachmentMD: hasAttachmentMD,
	}, nil
}

func parseDeviceMeta(get fieldLookup) (DeviceMeta, error) {
	osVersion, ok1 := get(fieldOSVersion)
	deviceType, ok2 := get(fieldDeviceType)
	if !ok1 || !ok2 || !isLenInRange(osVersion, 1, 30) || !isLenInRange(deviceType, 1, 30) {
		return DeviceMeta{}, ErrInvalidMetaData
	}
	return DeviceMeta{OSVersion: osVersion, DeviceType: deviceType}, nil
}

func parseApplicationMeta(get fieldLookup) (ApplicationMeta, error) {
	appVersion, ok := get(fieldAppVersion)
	if !ok || !isLenInRange(appVersion, 1, 30) {
		return ApplicationMeta{}, ErrInvalidMetaData
	}

	formatVersionStr, ok := get(fieldFormatVersion)
	if !ok {
		return ApplicationMeta{}, ErrInvalidMetaData
	}
	formatVersion, err := strconv.Atoi(formatVersionStr)
	if err != nil {
		return ApplicationMeta{}, ErrInvalidMetaData
	}

	if formatVersion < currentFormatVersion {
		// Deprecated format version: the server deliberately skips this upload.
		return ApplicationMeta{}, ErrSkipUpload
	}
	if formatVersion != currentFormatVersion {
		// Unknown (newer or otherwise unrecognized) format version.
		return ApplicationMeta{}, ErrInvalidMetaData
	}

	return ApplicationMeta{AppVersion: appVersion, FormatVersion: formatVersion}, nil
}

func parseMeasurementMeta(get fieldLookup) (MeasurementMeta, error) {
	lengthStr, ok := get(fieldLength)
	if !ok {
		return MeasurementMeta{}, ErrInvalidMetaData
	}
	length, err := strconv.ParseFloat(lengthStr, 64)
	if err != nil || length < 0 {
		return MeasurementMeta{}, ErrInvalidMetaData
	}

	locationCountStr, ok := get(fieldLocationCount)
	if !ok {
		return MeasurementMeta{}, ErrInvalidMetaData
	}
	locationCount, err := strconv.Atoi(locationCountStr)
	if err != nil || locationCount < 0 {
		return MeasurementMeta{}, ErrInvalidMetaData
	}

	if locationCount < 2 {
		// Too few locations: the server deliberately skips this upload.
		return MeasurementMeta{}, ErrSkipUpload
	}

	modality, ok := get(fieldModality)
	if !ok || !isLenInRange(modality, 1, 30) {
		return MeasurementMeta{}, ErrInvalidMetaData
	}

	start, err := parseGeoLocation(get, fieldStartLocLat, fieldStartLocLon, fieldStartLocTS)
	if err != nil {
		return MeasurementMeta{}, err
	}
	end, err := parseGeoLocation(get, fieldEndLocLat, fieldEndLocLon, fieldEndLocTS)
	if err != nil {
		return MeasurementMeta{}, err
	}

	return MeasurementMeta{
		Length:        length,
		LocationCount: locationCount,
		StartLocation: start,
		EndLocation:   end,
		Modality:      modality,
	}, nil
}

func parseGeoLocation(get fieldLookup, latField, lonField, tsField string) (*GeoLocation, error) {
	latStr, ok1 := get(latField)
	lonStr, ok2 := get(lonField)
	tsStr, ok3 := get(tsField)
	if !ok1 || !ok2 || !ok3 {
		return nil, ErrInvalidMetaData
	}

	lat, err1 := strconv.ParseFloat(latStr, 64)
	lon, err2 := strconv.ParseFloat(lonStr, 64)
	ts, err3 := strconv.ParseInt(tsStr, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil, ErrInvalidMetaData
	}

	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, ErrInvalidMetaData
	}

	return &GeoLocation{TimestampMS: ts, Lat: lat, Lon: lon}, nil
}

// parseAttachmentMeta parses the attachment metadata block. For
// attachment uploads all four fields are mandatory and at least one
// count must be positive with filesSize > 0 (strict mode). For
// measurement uploads the block may be entirely absent, which is treated
// as all-zero for backward compatibility; a partially present block is
// invalid (lenient-zeros mode).
func parseAttachmentMeta(get fieldLookup, isAttachmentUpload bool) (AttachmentMeta, bool, error) {
	logStr, ok1 := get(fieldLogCount)
	imgStr, ok2 := get(fieldImageCount)
	vidStr, ok3 := get(fieldVideoCount)
	sizeStr, ok4 := get(fieldFilesSize)

	present := ok1 || ok2 || ok3 || ok4
	complete := ok1 && ok2 && ok3 && ok4

	if !isAttachmentUpload && !present {
		// Backward compatibility: a measurement upload with no attachment
		// block at all is legal and means all zeros.
		return AttachmentMeta{}, false, nil
	}

	if !complete {
		// Both modes require all four fields once any is present.
		return AttachmentMeta{}, false, ErrInvalidMetaData
	}

	logCount, err1 := strconv.Atoi(logStr)
	imageCount, err2 := strconv.Atoi(imgStr)
	videoCount, err3 := strconv.Atoi(vidStr)
	filesSize, err4 := strconv.ParseInt(sizeStr, 10, 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return AttachmentMeta{}, false, ErrInvalidMetaData
	}
	if logCount < 0 || imageCount < 0 || videoCount < 0 || filesSize < 0 {
		return AttachmentMeta{}, false, ErrInvalidMetaData
	}

	if isAttachmentUpload {
		if (logCount == 0 && imageCount == 0 && videoCount == 0) || filesSize <= 0 {
			return AttachmentMeta{}, false, ErrInvalidMetaData
		}
	}

	return AttachmentMeta{
		LogCount:   logCount,
		ImageCount: imageCount,
		VideoCount: videoCount,
		FilesSize:  filesSize,
	}, true, nil
}

func isLenInRange(s string, min, max int) bool {
	return len(s) >= min && len(s) <= max
}
