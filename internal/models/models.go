// package models defines the state records of the comic client
package models

import (
	"fmt"
	"slices"
)

// Image is a file reference on the API's file server.
type Image struct {
	OriginalName string `json:"originalName"`
	Path         string `json:"path"`
	FileServer   string `json:"fileServer"`
}

// URL joins the file server and path.
func (i Image) URL() string {
	if i.Path == "" {
		return ""
	}
	return i.FileServer + "/static/" + i.Path
}

// Category is a catalog category.
type Category struct {
	ID          string `json:"_id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Thumb       *Image `json:"thumb,omitempty"`
	IsWeb       bool   `json:"isWeb,omitempty"`
	Active      bool   `json:"active,omitempty"`
	Link        string `json:"link,omitempty"`
}

// Comic is the catalog summary of a comic.
type Comic struct {
	ID         string   `json:"_id"`
	Title      string   `json:"title"`
	Author     string   `json:"author,omitempty"`
	Categories []string `json:"categories,omitempty"`
	PagesCount int      `json:"pagesCount,omitempty"`
	EpsCount   int      `json:"epsCount,omitempty"`
	Finished   bool     `json:"finished,omitempty"`
	TotalLikes int      `json:"totalLikes,omitempty"`
	TotalViews int      `json:"totalViews,omitempty"`
	Thumb      *Image   `json:"thumb,omitempty"`
}

// AccountInfo holds the remembered sign-in credentials.
type AccountInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Empty reports whether no credentials are remembered.
func (a AccountInfo) Empty() bool { return a.Email == "" && a.Password == "" }

// Local is the state of the local store. Field names match the durable keys.
type Local struct {
	Categories       []Category  `json:"CATEGORIES"`
	WatchLaterList   []Comic     `json:"WATCH_LATER_LIST"`
	FollowAuthorList []string    `json:"FOLLOW_AUTHOR_LIST"`
	AccountInfo      AccountInfo `json:"ACCOUNT_INFO"`
}

// NewLocal returns the built-in defaults of the local store.
func NewLocal() Local {
	return Local{
		Categories:       []Category{},
		WatchLaterList:   []Comic{},
		FollowAuthorList: []string{},
	}
}

// UserProfile is the signed-in user's profile.
type UserProfile struct {
	ID         string `json:"_id"`
	Birthday   string `json:"birthday,omitempty"`
	Email      string `json:"email"`
	Gender     string `json:"gender,omitempty"`
	Name       string `json:"name"`
	Slogan     string `json:"slogan,omitempty"`
	Title      string `json:"title,omitempty"`
	Verified   bool   `json:"verified"`
	Exp        int    `json:"exp"`
	Level      int    `json:"level"`
	Characters []any  `json:"characters,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	Avatar     *Image `json:"avatar,omitempty"`
	IsPunched  bool   `json:"isPunched"`
}

// UserState is the state of the user store.
type UserState struct {
	Token string       `json:"token"`
	User  *UserProfile `json:"user"`
}

// SignedIn reports whether a session token is held.
func (u UserState) SignedIn() bool { return u.Token != "" }

// ImageQuality is the requested image quality for reader pages.
type ImageQuality string

const (
	QualityOriginal ImageQuality = "original"
	QualityHigh     ImageQuality = "high"
	QualityMedium   ImageQuality = "medium"
	QualityLow      ImageQuality = "low"
)

// ImageQualities lists the supported qualities, best first.
var ImageQualities = []ImageQuality{QualityOriginal, QualityHigh, QualityMedium, QualityLow}

// ParseImageQuality validates s against [ImageQualities].
func ParseImageQuality(s string) (ImageQuality, error) {
	q := ImageQuality(s)
	if slices.Contains(ImageQualities, q) {
		return q, nil
	}
	return "", fmt.Errorf("unknown image quality %q", s)
}

// Proxy is one API route: the API host and its file server.
type Proxy struct {
	API  string `json:"api"`
	File string `json:"file"`
}

// ProxyLine is a selectable route.
type ProxyLine struct {
	Label string
	Value Proxy
}

// Proxies lists the known API routes.
var Proxies = []ProxyLine{
	{Label: "line 1, no VPN, slower", Value: Proxy{API: "https://api.go2778.com/", File: "https://s3.go2778.com/static/"}},
	{Label: "line 2, VPN, faster", Value: Proxy{API: "https://api.manhuabika.com/", File: "https://storage-b.picacomic.com/static/"}},
	{Label: "line 3, VPN, faster", Value: Proxy{API: "https://picaapi.picacomic.com/", File: "https://s3.picacomic.com/static/"}},
}

// ComicSetting holds the reader settings.
type ComicSetting struct {
	ImageQuality      ImageQuality `json:"imageQuality"`
	Proxy             Proxy        `json:"proxy"`
	BlockedCategories []string     `json:"blockedCategories"`
	ComicImageWidth   int          `json:"comicImageWidth"`
	AutoRead          bool         `json:"autoRead"`
	AutoReadSpeed     int          `json:"autoReadSpeed"`
}

// SettingState is the state of the setting store.
type SettingState struct {
	Comic ComicSetting `json:"comic"`
}

// NewSettingState returns the built-in defaults of the setting store.
func NewSettingState() SettingState {
	return SettingState{
		Comic: ComicSetting{
			ImageQuality:      QualityMedium,
			Proxy:             Proxies[0].Value,
			BlockedCategories: []string{},
			ComicImageWidth:   800,
			AutoRead:          false,
			AutoReadSpeed:     20,
		},
	}
}
