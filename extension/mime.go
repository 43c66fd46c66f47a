package extension

import "strconv"

// MIME is a well-known MIME type id.
// See: https://github.com/rsocket/rsocket/blob/master/Extensions/WellKnownMimeTypes.md
type MIME uint8

// Well-known MIME types.
const (
	ApplicationAvro          MIME = 0x00
	ApplicationCBOR          MIME = 0x01
	ApplicationGraphql       MIME = 0x02
	ApplicationGzip          MIME = 0x03
	ApplicationJavascript    MIME = 0x04
	ApplicationJSON          MIME = 0x05
	ApplicationOctetStream   MIME = 0x06
	ApplicationPDF           MIME = 0x07
	ApplicationThrift        MIME = 0x08
	ApplicationProtobuf      MIME = 0x09
	ApplicationXML           MIME = 0x0A
	ApplicationZip           MIME = 0x0B
	AudioAAC                 MIME = 0x0C
	AudioMP3                 MIME = 0x0D
	AudioMP4                 MIME = 0x0E
	AudioMPEG3               MIME = 0x0F
	AudioMPEG                MIME = 0x10
	AudioOGG                 MIME = 0x11
	AudioOpus                MIME = 0x12
	AudioVorbis              MIME = 0x13
	ImageBMP                 MIME = 0x14
	ImageGIF                 MIME = 0x15
	ImageHEICSequence        MIME = 0x16
	ImageHEIC                MIME = 0x17
	ImageHEIFSequence        MIME = 0x18
	ImageHEIF                MIME = 0x19
	ImageJPEG                MIME = 0x1A
	ImagePNG                 MIME = 0x1B
	ImageTIFF                MIME = 0x1C
	MultipartMixed           MIME = 0x1D
	TextCSS                  MIME = 0x1E
	TextCSV                  MIME = 0x1F
	TextHTML                 MIME = 0x20
	TextPlain                MIME = 0x21
	TextXML                  MIME = 0x22
	VideoH264                MIME = 0x23
	VideoH265                MIME = 0x24
	VideoVP8                 MIME = 0x25
	ApplicationHessian       MIME = 0x26
	ApplicationJavaObject    MIME = 0x27
	ApplicationCloudevents   MIME = 0x28
	MessageMIMEType          MIME = 0x7A
	MessageAcceptMIMETypes   MIME = 0x7B
	MessageAuthentication    MIME = 0x7C
	MessageZipkin            MIME = 0x7D
	MessageRouting           MIME = 0x7E
	MessageCompositeMetadata MIME = 0x7F
)

// MaxMIME is the largest id which can be encoded as a well-known MIME type.
const MaxMIME MIME = 0x7F

var (
	mimeTypes = map[MIME]string{
		ApplicationAvro:          "application/avro",
		ApplicationCBOR:          "application/cbor",
		ApplicationGraphql:       "application/graphql",
		ApplicationGzip:          "application/gzip",
		ApplicationJavascript:    "application/javascript",
		ApplicationJSON:          "application/json",
		ApplicationOctetStream:   "application/octet-stream",
		ApplicationPDF:           "application/pdf",
		ApplicationThrift:        "application/vnd.apache.thrift.binary",
		ApplicationProtobuf:      "application/vnd.google.protobuf",
		ApplicationXML:           "application/xml",
		ApplicationZip:           "application/zip",
		AudioAAC:                 "audio/aac",
		AudioMP3:                 "audio/mp3",
		AudioMP4:                 "audio/mp4",
		AudioMPEG3:               "audio/mpeg3",
		AudioMPEG:                "audio/mpeg",
		AudioOGG:                 "audio/ogg",
		AudioOpus:                "audio/opus",
		AudioVorbis:              "audio/vorbis",
		ImageBMP:                 "image/bmp",
		ImageGIF:                 "image/gif",
		ImageHEICSequence:        "image/heic-sequence",
		ImageHEIC:                "image/heic",
		ImageHEIFSequence:        "image/heif-sequence",
		ImageHEIF:                "image/heif",
		ImageJPEG:                "image/jpeg",
		ImagePNG:                 "image/png",
		ImageTIFF:                "image/tiff",
		MultipartMixed:           "multipart/mixed",
		TextCSS:                  "text/css",
		TextCSV:                  "text/csv",
		TextHTML:                 "text/html",
		TextPlain:                "text/plain",
		TextXML:                  "text/xml",
		VideoH264:                "video/H264",
		VideoH265:                "video/H265",
		VideoVP8:                 "video/VP8",
		ApplicationHessian:       "application/x-hessian",
		ApplicationJavaObject:    "application/x-java-object",
		ApplicationCloudevents:   "application/cloudevents+json",
		MessageMIMEType:          "message/x.rsocket.mime-type.v0",
		MessageAcceptMIMETypes:   "message/x.rsocket.accept-mime-types.v0",
		MessageAuthentication:    "message/x.rsocket.authentication.v0",
		MessageZipkin:            "message/x.rsocket.tracing-zipkin.v0",
		MessageRouting:           "message/x.rsocket.routing.v0",
		MessageCompositeMetadata: "message/x.rsocket.composite-metadata.v0",
	}
	mimeTypesR = make(map[string]MIME, len(mimeTypes))
)

func init() {
	for k, v := range mimeTypes {
		mimeTypesR[v] = k
	}
}

// String returns the MIME string, an unknown id is printed as its number.
func (p MIME) String() string {
	if s, ok := mimeTypes[p]; ok {
		return s
	}
	return "unknown/0x" + strconv.FormatUint(uint64(p), 16)
}

// IsKnown returns true if the id exists in the well-known table.
func (p MIME) IsKnown() bool {
	_, ok := mimeTypes[p]
	return ok
}

// ParseMIME parse a string to MIME.
func ParseMIME(str string) (mime MIME, ok bool) {
	mime, ok = mimeTypesR[str]
	return
}
