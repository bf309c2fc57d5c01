// Package ros reads recorded ROS bags and replays their sensor topics into a node.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/eosrobotics/eos/logging"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag")
	}
	return rb, nil
}

// AllMessagesForTopic returns all messages for a specific topic in the ros bag.
func AllMessagesForTopic(rb *rosbag.RosBag, topic string) ([]map[string]interface{}, error) {
	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool { return t == topic },
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	msgs := rb.TopicsAsJSON[bagKey(topic)]
	if msgs == nil {
		return nil, errors.Errorf("no messages for topic %s", topic)
	}
	return decodeLines(msgs)
}

// bagKey is the key gobag files a topic's JSON lines under: no leading slash, the other
// slashes replaced by underscores, lower case.
func bagKey(topic string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimPrefix(topic, "/"), "/", "_"))
}

type lineReader interface {
	ReadBytes(delim byte) ([]byte, error)
}

func decodeLines(r lineReader) ([]map[string]interface{}, error) {
	all := []map[string]interface{}{}
	for {
		data, err := r.ReadBytes('\n')
		if len(data) > 0 {
			message := map[string]interface{}{}
			if err := json.Unmarshal(data, &message); err != nil {
				return nil, err
			}
			all = append(all, message)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
	}
	return all, nil
}

// LoadMessages converts every record of the node's input topics into Messages ordered by record
// time. Topics missing from the bag are skipped, records that fail to decode are logged and
// dropped.
func LoadMessages(rb *rosbag.RosBag, logger logging.Logger) ([]Message, error) {
	var out []Message
	for _, topic := range []string{TopicScan, TopicImu, TopicOdometry, TopicSetGoal} {
		raw, err := AllMessagesForTopic(rb, topic)
		if err != nil {
			logger.Debugw("skipping topic", "topic", topic, "error", err)
			continue
		}
		for _, r := range raw {
			msg, err := Convert(topic, r)
			if err != nil {
				logger.Warnw("dropping bag record", "topic", topic, "error", err)
				continue
			}
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		return nil, errors.New("bag contains no usable sensor messages")
	}
	sortByRecorded(out)
	return out, nil
}

func sortByRecorded(msgs []Message) {
	slices.SortStableFunc(msgs, func(a, b Message) int {
		return a.Recorded.Time().Compare(b.Recorded.Time())
	})
}
