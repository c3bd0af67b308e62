package schema

import "github.com/taibuivan/folio/internal/platform/constants"

// CoreBookTable represents the 'core.book' table
type CoreBookTable struct {
	Table            string
	ID               string
	OwnerID          string
	Title            string
	Author           string
	CoverImage       string
	Pages            string
	AudioItems       string
	VideoItems       string
	YoutubeItems     string
	EbookFile        string
	WatermarkFile    string
	BookType         string
	IsPrivate        string
	GenerationStatus string
	Version          string
	CreatedAt        string
	UpdatedAt        string
}

// CoreBook is the schema definition for core.book
var CoreBook = CoreBookTable{
	Table:            constants.SchemaCore + ".book",
	ID:               "id",
	OwnerID:          "ownerid",
	Title:            "title",
	Author:           "author",
	CoverImage:       "coverimage",
	Pages:            "pages",
	AudioItems:       "audioitems",
	VideoItems:       "videoitems",
	YoutubeItems:     "youtubeitems",
	EbookFile:        "ebookfile",
	WatermarkFile:    "watermarkfile",
	BookType:         "booktype",
	IsPrivate:        "isprivate",
	GenerationStatus: "generationstatus",
	Version:          "version",
	CreatedAt:        "createdat",
	UpdatedAt:        "updatedat",
}

func (t CoreBookTable) Columns() []string {
	return []string{
		t.ID, t.OwnerID, t.Title, t.Author, t.CoverImage, t.Pages, t.AudioItems, t.VideoItems,
		t.YoutubeItems, t.EbookFile, t.WatermarkFile, t.BookType, t.IsPrivate, t.GenerationStatus,
		t.Version, t.CreatedAt, t.UpdatedAt,
	}
}
