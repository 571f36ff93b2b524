// Package main provides a load testing tool for the notification WebSocket stream.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted  int64
	ConnectionsSuccess    int64
	ConnectionsFailed     int64
	CommentsSent          int64
	NotificationsReceived int64
	Errors                int64
}

var metrics Metrics

var httpClient = &http.Client{Timeout: 5 * time.Second}

func main() {
	host := flag.String("host", "localhost:5000", "API server host")
	email := flag.String("email", "listener@example.com", "Listening user email")
	password := flag.String("password", "password123", "Listening user password")
	actorEmail := flag.String("actor-email", "actor@example.com", "Commenting user email")
	actorPassword := flag.String("actor-password", "password123", "Commenting user password")
	clients := flag.Int("clients", 10, "Number of concurrent stream connections for the listener")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between actor comments")
	flag.Parse()

	log.Printf("Starting notification stream load test")
	log.Printf("Target: %s", *host)
	log.Printf("Clients: %d", *clients)
	log.Printf("Duration: %v", *duration)

	listenerToken, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("listener login failed: %v", err)
	}
	actorToken, err := login(*host, *actorEmail, *actorPassword)
	if err != nil {
		log.Fatalf("actor login failed: %v", err)
	}

	postID, err := createPost(*host, listenerToken)
	if err != nil {
		log.Fatalf("create post failed: %v", err)
	}
	log.Printf("Listening for engagement on post %s", postID)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, listenerToken, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}

	wg.Add(1)
	go runActor(*host, actorToken, postID, *interval, stopChan, &wg)

	select {
	case <-time.After(*duration):
		log.Println("Test duration reached")
	case <-interrupt:
		log.Println("Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

func postJSON(u, token string, payload any, out any) error {
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			return err
		}
	}
	req, err := http.NewRequest(http.MethodPost, u, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("%s failed with status %d", u, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func login(host, email, password string) (string, error) {
	var result struct {
		Token string `json:"token"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/auth/login", host), "", map[string]string{
		"email":    email,
		"password": password,
	}, &result)
	return result.Token, err
}

func createPost(host, token string) (string, error) {
	var result struct {
		Post struct {
			ID string `json:"id"`
		} `json:"post"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/posts", host), token, map[string]string{
		"text": "load test post " + time.Now().Format(time.RFC3339),
	}, &result)
	return result.Post.ID, err
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	err := postJSON(fmt.Sprintf("http://%s/api/ws/ticket", host), token, nil, &result)
	return result.Ticket, err
}

func runClient(host, token string, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	// Tickets are single-use; every connection needs its own.
	ticket, err := getTicket(host, token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + ticket}

	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			var event struct {
				Type string `json:"type"`
			}
			if err := c.ReadJSON(&event); err != nil {
				return
			}
			if event.Type == "notification" {
				atomic.AddInt64(&metrics.NotificationsReceived, 1)
			}
		}
	}()

	<-stopChan
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func runActor(host, token, postID string, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	commentURL := fmt.Sprintf("http://%s/api/posts/%s/comment", host, postID)
	for n := 1; ; n++ {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			if err := postJSON(commentURL, token, map[string]string{
				"text": fmt.Sprintf("load test comment %d", n),
			}, nil); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.CommentsSent, 1)
		}
	}
}

func printMetrics() {
	sent := atomic.LoadInt64(&metrics.CommentsSent)
	connected := atomic.LoadInt64(&metrics.ConnectionsSuccess)

	log.Println("Test Results")
	log.Println("============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", connected)
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Comments Sent: %d", sent)
	log.Printf("Notifications Received: %d (expected %d)", atomic.LoadInt64(&metrics.NotificationsReceived), sent*connected)
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
