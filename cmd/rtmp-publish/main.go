// Command rtmp-publish reads an FLV file and publishes it to an RTMP
// endpoint, pacing tags to their original timestamps. It exercises
// rtmp.Client's publish state machine end to end against flv.Demuxer.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/strmio/rtmp/amf0"
	"github.com/strmio/rtmp/flv"
	"github.com/strmio/rtmp/rtmp"
)

func main() {
	url := flag.String("url", "", "destination rtmp(s|t|te|ts):// URL, including the stream key path segment")
	input := flag.String("in", "", "path to the FLV file to publish")
	realtime := flag.Bool("realtime", true, "pace tags to their original timestamps instead of sending as fast as possible")
	flag.Parse()

	if *url == "" || *input == "" {
		fmt.Fprintln(os.Stderr, "usage: rtmp-publish -url rtmp://host/app/key -in video.flv")
		os.Exit(2)
	}

	if err := publish(*url, *input, *realtime); err != nil {
		fmt.Fprintln(os.Stderr, "rtmp-publish:", err)
		os.Exit(1)
	}
}

func publish(rawURL, inputPath string, realtime bool) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	client, err := rtmp.Dial(rawURL, rtmp.DefaultClientConfig(""))
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	u, err := rtmp.ParseURL(rawURL)
	if err != nil {
		return err
	}

	const timeout = 10 * time.Second
	if err := client.Connect(timeout); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := client.CreateStream(u.StreamKey, timeout); err != nil {
		return fmt.Errorf("createStream: %w", err)
	}
	if err := client.Publish(u.StreamKey, rtmp.PublishLive, timeout); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	dem := flv.NewDemuxer(f)
	start := time.Now()
	var firstTS *uint32

	for {
		tag, err := dem.DecodeTagOnly()
		if err != nil {
			break // EOF or trailing garbage; either way, we're done
		}

		if firstTS == nil {
			ts := tag.Timestamp
			firstTS = &ts
		}
		if realtime {
			elapsed := time.Duration(tag.Timestamp-*firstTS) * time.Millisecond
			if wait := elapsed - time.Since(start); wait > 0 {
				time.Sleep(wait)
			}
		}

		switch tag.Type {
		case flv.TagAudio:
			err = client.WriteAudio(tag.Timestamp, tag.Body)
		case flv.TagVideo:
			err = client.WriteVideo(tag.Timestamp, tag.Body)
		case flv.TagScript:
			if props := scriptProps(tag.Body); props != nil {
				err = client.WriteSetDataFrame(props)
			}
		}
		if err != nil {
			return fmt.Errorf("write tag: %w", err)
		}
	}

	return nil
}

// scriptProps extracts the parameter object out of a raw onMetaData script
// tag body (name String, then an Object/EcmaArray of properties).
func scriptProps(body []byte) *amf0.Value {
	r := amf0.NewReader(body)
	if _, err := r.ReadValue(); err != nil { // the "onMetaData" name
		return nil
	}
	props, err := r.ReadValue()
	if err != nil {
		return nil
	}
	return props
}
