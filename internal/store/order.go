package store

import "sort"

// SortMedia orders records by UploadedAt, then Code.
func SortMedia(recs []MediaRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UploadedAt.Equal(recs[j].UploadedAt) {
			return recs[i].UploadedAt.Before(recs[j].UploadedAt)
		}
		return recs[i].Code < recs[j].Code
	})
}

// SortByDownloads orders records by DownloadCount descending, then Code.
func SortByDownloads(recs []MediaRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DownloadCount != recs[j].DownloadCount {
			return recs[i].DownloadCount > recs[j].DownloadCount
		}
		return recs[i].Code < recs[j].Code
	})
}

// SortChannels orders channels by AddedAt, then ID. This is the order
// positional selectors refer to.
func SortChannels(recs []ChannelRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].AddedAt.Equal(recs[j].AddedAt) {
			return recs[i].AddedAt.Before(recs[j].AddedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
