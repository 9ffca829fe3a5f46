package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"sync"
	"testing"
	"time"
)

// loadClient is a goroutine-safe counterpart of testClient: it reports
// failures as errors instead of calling t.Fatalf.
type loadClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func dialLoad(addr string) (*loadClient, error) {
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &loadClient{conn: conn, reader: bufio.NewReader(conn)}, nil
}

func (c *loadClient) execute(query string) (time.Duration, error) {
	start := time.Now()
	if _, err := c.conn.Write([]byte(query + "\n")); err != nil {
		return 0, err
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return 0, err
	}
	var resp Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return 0, err
	}
	if !resp.Success {
		return 0, fmt.Errorf("query failed: %s", resp.Error)
	}
	return time.Since(start), nil
}

type latencies struct {
	mu      sync.Mutex
	samples []time.Duration
	errors  int
}

func (l *latencies) record(latency time.Duration, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		l.errors++
		return
	}
	l.samples = append(l.samples, latency)
}

func (l *latencies) percentile(p int) time.Duration {
	if len(l.samples) == 0 {
		return 0
	}
	sort.Slice(l.samples, func(i, j int) bool { return l.samples[i] < l.samples[j] })
	return l.samples[(len(l.samples)-1)*p/100]
}

func TestServerConcurrentClients(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping load test in short mode")
	}

	server, cleanup := setupTestServer(t)
	defer cleanup()

	resp := sendQuery(t, server.Addr(), "CREATE TABLE events (id INT AUTO_INCREMENT PRIMARY KEY, client INT, seq INT)")
	if !resp.Success {
		t.Fatalf("Failed to create table: %s", resp.Error)
	}

	const (
		numClients = 20
		perClient  = 25
	)
	metrics := &latencies{}
	var wg sync.WaitGroup

	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func(clientID int) {
			defer wg.Done()
			client, err := dialLoad(server.Addr())
			if err != nil {
				metrics.record(0, err)
				return
			}
			defer client.conn.Close()

			for seq := 0; seq < perClient; seq++ {
				metrics.record(client.execute(fmt.Sprintf("INSERT INTO events (client, seq) VALUES (%d, %d)", clientID, seq)))
				metrics.record(client.execute(fmt.Sprintf("SELECT COUNT(*) FROM events WHERE client = %d", clientID)))
			}
		}(i)
	}
	wg.Wait()

	if metrics.errors > 0 {
		t.Errorf("Expected no failed requests, got %d", metrics.errors)
	}
	t.Logf("requests=%d p50=%v p99=%v", len(metrics.samples), metrics.percentile(50), metrics.percentile(99))

	resp = sendQuery(t, server.Addr(), "SELECT COUNT(*) AS n, COUNT(DISTINCT id) AS ids FROM events")
	var qr QueryResponse
	if err := json.Unmarshal(resp.Result, &qr); err != nil {
		t.Fatalf("Failed to parse query result: %v", err)
	}
	want := fmt.Sprint(numClients * perClient)
	if qr.Data[0][0] != want || qr.Data[0][1] != want {
		t.Errorf("Expected %s rows with unique ids, got %v", want, qr.Data[0])
	}
}

func TestServerConnectionChurn(t *testing.T) {
	server, cleanup := setupTestServer(t)
	defer cleanup()

	for i := 0; i < 50; i++ {
		client, err := dialLoad(server.Addr())
		if err != nil {
			t.Fatalf("Failed to connect on iteration %d: %v", i, err)
		}
		if _, err := client.execute("SELECT 1"); err != nil {
			t.Fatalf("Query failed on iteration %d: %v", i, err)
		}
		client.conn.Close()
	}
}
