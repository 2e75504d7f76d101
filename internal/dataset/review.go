package dataset

import (
	"path"
	"regexp"
	"strconv"
	"strings"
)

// Splits of the review corpus.
const (
	SplitTrain = "train"
	SplitTest  = "test"
)

var reviewFileRegexp = regexp.MustCompile(`^([0-9]+)_([0-9]+)\.txt$`)

// Review is one raw labeled movie review.
type Review struct {
	Key    string
	Split  string
	Label  int
	Rating int
	Text   string
}

// parseReviewPath extracts split, label and rating from a corpus path such as
// aclImdb/train/pos/123_9.txt. Unlabeled and unrelated entries report ok=false.
func parseReviewPath(p string) (Review, bool) {
	p = strings.ReplaceAll(p, "\\", "/")
	name := path.Base(p)
	m := reviewFileRegexp.FindStringSubmatch(name)
	if m == nil {
		return Review{}, false
	}
	sentiment := path.Base(path.Dir(p))
	split := path.Base(path.Dir(path.Dir(p)))

	var label int
	switch sentiment {
	case "pos":
		label = 1
	case "neg":
		label = 0
	default:
		return Review{}, false
	}
	if split != SplitTrain && split != SplitTest {
		return Review{}, false
	}
	rating, err := strconv.Atoi(m[2])
	if err != nil {
		return Review{}, false
	}
	return Review{
		Key:    split + "/" + sentiment + "/" + m[1] + "_" + m[2],
		Split:  split,
		Label:  label,
		Rating: rating,
	}, true
}
