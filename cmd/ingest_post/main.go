package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"labelagent/internal/httpx"
	"labelagent/internal/logger"
)

func main() {
	var (
		file     string
		category string
		host     string
		timeout  int
	)
	flag.StringVar(&file, "file", "", "image to upload")
	flag.StringVar(&category, "type", "general", "item category")
	flag.StringVar(&host, "host", "http://localhost:8000", "server base URL")
	flag.IntVar(&timeout, "timeout", 120, "request timeout seconds")
	flag.Parse()

	log := logger.GetLogger().WithComponent("ingest_post")
	if file == "" {
		log.Fatal("-file is required")
	}

	body, contentType, err := multipartImage(file, category)
	if err != nil {
		log.WithError(err).Fatal("build request")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(host, "/")+"/ingest", body)
	if err != nil {
		log.WithError(err).Fatal("build request")
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := httpx.New(time.Duration(timeout)*time.Second).Do(ctx, req)
	if err != nil {
		log.WithError(err).Fatal("upload")
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	fmt.Println(resp.Status)
	fmt.Println(string(out))
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}

func multipartImage(path, category string) (*bytes.Buffer, string, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("type", category); err != nil {
		return nil, "", err
	}
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(img); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
