package demux

import (
	"bytes"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	bmff "github.com/tetsuo/mp4demux"
)

// Metadata maps field names ("title", "artist", "coverArt", ...) to values
// of type string, []byte, uint8, uint16 or bool.
type Metadata map[string]any

// data box well-known types
const (
	dataUTF8  = 1
	dataUTF16 = 2
)

// metaField decodes the payload of an ilst data box. It returns false when
// the value is absent.
type metaField struct {
	name   string
	decode func(kind uint32, p []byte) (any, bool)
}

// metadataTags maps ilst item types to fields. Tags carrying the 0xA9
// byte are the classic QuickTime text items.
var metadataTags = map[bmff.BoxType]metaField{
	bmff.NewBoxType("\xa9alb"): {"album", readString},
	bmff.NewBoxType("\xa9arg"): {"arranger", readString},
	bmff.NewBoxType("\xa9art"): {"artist", readString},
	bmff.NewBoxType("\xa9ART"): {"artist", readString},
	bmff.NewBoxType("aART"):    {"albumArtist", readString},
	bmff.NewBoxType("catg"):    {"category", readString},
	bmff.NewBoxType("\xa9com"): {"composer", readString},
	bmff.NewBoxType("\xa9cpy"): {"copyright", readString},
	bmff.NewBoxType("cprt"):    {"copyright", readString},
	bmff.NewBoxType("\xa9cmt"): {"comments", readString},
	bmff.NewBoxType("\xa9day"): {"releaseDate", readString},
	bmff.NewBoxType("desc"):    {"description", readString},
	bmff.NewBoxType("\xa9gen"): {"genre", readString},
	bmff.NewBoxType("\xa9grp"): {"grouping", readString},
	bmff.NewBoxType("\xa9isr"): {"ISRC", readString},
	bmff.NewBoxType("keyw"):    {"keywords", readString},
	bmff.NewBoxType("\xa9lab"): {"recordLabel", readString},
	bmff.NewBoxType("ldes"):    {"longDescription", readString},
	bmff.NewBoxType("\xa9lyr"): {"lyrics", readString},
	bmff.NewBoxType("\xa9nam"): {"title", readString},
	bmff.NewBoxType("\xa9phg"): {"recordingCopyright", readString},
	bmff.NewBoxType("\xa9prd"): {"producer", readString},
	bmff.NewBoxType("\xa9prf"): {"performers", readString},
	bmff.NewBoxType("purd"):    {"purchaseDate", readString},
	bmff.NewBoxType("purl"):    {"podcastURL", readString},
	bmff.NewBoxType("\xa9swf"): {"songwriter", readString},
	bmff.NewBoxType("\xa9too"): {"encoder", readString},
	bmff.NewBoxType("\xa9wrt"): {"composer", readString},
	bmff.NewBoxType("tvsh"):    {"tvShow", readString},
	bmff.NewBoxType("tvnn"):    {"tvNetwork", readString},
	bmff.NewBoxType("sonm"):    {"sortTitle", readString},
	bmff.NewBoxType("soar"):    {"sortArtist", readString},
	bmff.NewBoxType("soal"):    {"sortAlbum", readString},
	bmff.NewBoxType("covr"):    {"coverArt", readBinary},
	bmff.NewBoxType("gnre"):    {"genre", readGenre},
	bmff.NewBoxType("tmpo"):    {"tempo", readUint16},
	bmff.NewBoxType("rtng"):    {"rating", readRating},
	bmff.NewBoxType("stik"):    {"mediaKind", readUint8},
	bmff.NewBoxType("hdvd"):    {"hdVideo", readUint8},
	bmff.NewBoxType("disk"):    {"diskNumber", readPair},
	bmff.NewBoxType("trkn"):    {"trackNumber", readPair},
	bmff.NewBoxType("cpil"):    {"compilation", readBool},
	bmff.NewBoxType("pcst"):    {"podcast", readBool},
	bmff.NewBoxType("pgap"):    {"gapless", readBool},
}

func registerMetadataHandlers(r *Registry) {
	for _, meta := range []string{"moov.udta.meta", "moov.trak.udta.meta"} {
		r.Register(meta, (*Demuxer).readMeta)
		r.After(meta, (*Demuxer).afterMeta)
		for tag := range metadataTags {
			r.Register(meta+".ilst."+tag.String()+".data", (*Demuxer).readMetaData)
		}
	}
}

func (d *Demuxer) readMeta() error {
	if _, err := d.src.ReadFixed(4); err != nil { // version and flags
		return err
	}
	d.meta = Metadata{}
	return nil
}

func (d *Demuxer) afterMeta() error {
	m := d.meta
	d.meta = nil
	if m == nil {
		return nil
	}
	if err := d.sink.Metadata(d.track, m); err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	return nil
}

// readMetaData decodes the data box of an ilst item; the item type is the
// parent box.
func (d *Demuxer) readMetaData() error {
	body, err := d.ReadBody()
	if err != nil {
		return err
	}
	tag := d.stack[len(d.stack)-2].typ
	if len(body) < 8 || d.meta == nil {
		d.log.Warn("short metadata item", "tag", tag.String(), "size", len(body))
		return nil
	}
	// version byte, 24 bit type, then a 4 byte locale
	kind := be.Uint32(body[0:4]) & 0x00ffffff
	f := metadataTags[tag]
	if v, ok := f.decode(kind, body[8:]); ok {
		d.meta[f.name] = v
	}
	return nil
}

var utf16 = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

func readString(kind uint32, p []byte) (any, bool) {
	if kind == dataUTF16 {
		s, err := utf16.NewDecoder().Bytes(p)
		if err != nil {
			return nil, false
		}
		return string(s), true
	}
	return string(p), true
}

func readBinary(_ uint32, p []byte) (any, bool) {
	return bytes.Clone(p), true
}

func readUint8(_ uint32, p []byte) (any, bool) {
	if len(p) < 1 {
		return nil, false
	}
	return p[0], true
}

func readUint16(_ uint32, p []byte) (any, bool) {
	if len(p) < 2 {
		return nil, false
	}
	return be.Uint16(p), true
}

func readBool(_ uint32, p []byte) (any, bool) {
	if len(p) < 1 {
		return nil, false
	}
	return p[0] == 1, true
}

// readPair renders disk and track numbers as "X of Y".
func readPair(_ uint32, p []byte) (any, bool) {
	if len(p) < 6 {
		return nil, false
	}
	return fmt.Sprintf("%d of %d", be.Uint16(p[2:4]), be.Uint16(p[4:6])), true
}

func readRating(_ uint32, p []byte) (any, bool) {
	if len(p) < 1 {
		return nil, false
	}
	switch p[0] {
	case 0:
		return "None", true
	case 2:
		return "Clean", true
	}
	return "Explicit", true
}

// readGenre maps a 1-based ID3 genre number to its name. 0 and numbers past
// the table are absent.
func readGenre(_ uint32, p []byte) (any, bool) {
	if len(p) < 2 {
		return nil, false
	}
	n := int(be.Uint16(p))
	if n < 1 || n > len(genres) {
		return nil, false
	}
	return genres[n-1], true
}

// genres is the ID3v1 genre list.
var genres = [...]string{
	"Blues", "Classic Rock", "Country", "Dance", "Disco", "Funk", "Grunge",
	"Hip-Hop", "Jazz", "Metal", "New Age", "Oldies", "Other", "Pop", "R&B",
	"Rap", "Reggae", "Rock", "Techno", "Industrial", "Alternative", "Ska",
	"Death Metal", "Pranks", "Soundtrack", "Euro-Techno", "Ambient", "Trip-Hop",
	"Vocal", "Jazz+Funk", "Fusion", "Trance", "Classical", "Instrumental",
	"Acid", "House", "Game", "Sound Clip", "Gospel", "Noise", "AlternRock",
	"Bass", "Soul", "Punk", "Space", "Meditative", "Instrumental Pop",
	"Instrumental Rock", "Ethnic", "Gothic", "Darkwave", "Techno-Industrial",
	"Electronic", "Pop-Folk", "Eurodance", "Dream", "Southern Rock", "Comedy",
	"Cult", "Gangsta", "Top 40", "Christian Rap", "Pop/Funk", "Jungle",
	"Native American", "Cabaret", "New Wave", "Psychadelic", "Rave",
	"Showtunes", "Trailer", "Lo-Fi", "Tribal", "Acid Punk", "Acid Jazz",
	"Polka", "Retro", "Musical", "Rock & Roll", "Hard Rock", "Folk",
	"Folk/Rock", "National Folk", "Swing", "Fast Fusion", "Bebob", "Latin",
	"Revival", "Celtic", "Bluegrass", "Avantgarde", "Gothic Rock",
	"Progressive Rock", "Psychedelic Rock", "Symphonic Rock", "Slow Rock",
	"Big Band", "Chorus", "Easy Listening", "Acoustic", "Humour", "Speech",
	"Chanson", "Opera", "Chamber Music", "Sonata", "Symphony", "Booty Bass",
	"Primus", "Porn Groove", "Satire", "Slow Jam", "Club", "Tango", "Samba",
	"Folklore", "Ballad", "Power Ballad", "Rhythmic Soul", "Freestyle", "Duet",
	"Punk Rock", "Drum Solo", "A Capella", "Euro-House", "Dance Hall",
	// Winamp extensions
	"Goa", "Drum & Bass", "Club-House", "Hardcore", "Terror", "Indie",
	"BritPop", "Negerpunk", "Polsk Punk", "Beat", "Christian Gangsta Rap",
	"Heavy Metal", "Black Metal", "Crossover", "Contemporary Christian",
	"Christian Rock", "Merengue", "Salsa", "Thrash Metal", "Anime", "JPop",
	"Synthpop",
}
