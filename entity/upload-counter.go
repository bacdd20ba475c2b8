package entity

import "time"

// UploadCounter is embedded in the owner document.
// DailyUploads counts accepted uploads since LastDailyReset; Count is the lifetime total.
type UploadCounter struct {
	Count          int       `json:"count" bson:"count"`
	LastUpdated    time.Time `json:"last_updated" bson:"last_updated"`
	DailyUploads   int       `json:"daily_uploads" bson:"daily_uploads"`
	LastDailyReset time.Time `json:"last_daily_reset" bson:"last_daily_reset"`
}

// UploadStatus is the upload-count API payload
type UploadStatus struct {
	DailyUploads int  `json:"daily_uploads"`
	Count        int  `json:"count"`
	DailyLimit   int  `json:"daily_limit"`
	TimeLeft     *int `json:"time_left,omitempty"`
}
