package main

import (
	"bufio"
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
)

// Interactive SCPI client for poking the instrument server by hand:
//
//	go run test/client.go -host localhost:5025
//	> *IDN?
//	> OSC:MEAS? CH1
func main() {
	host := flag.String("host", "localhost:5025", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *host)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", *host)

	stdin := bufio.NewScanner(os.Stdin)
	reply := bufio.NewReader(conn)

	for {
		fmt.Print("> ")
		if !stdin.Scan() {
			return
		}
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}

		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			log.Fatalf("send: %v", err)
		}

		// set commands produce no reply
		if !strings.Contains(line, "?") {
			continue
		}

		if err := printReply(reply); err != nil {
			log.Fatalf("read reply: %v", err)
		}
	}
}

// printReply consumes one reply line, decoding a binary block if present.
func printReply(r *bufio.Reader) error {
	first, err := r.Peek(1)
	if err != nil {
		return err
	}

	if first[0] == '#' {
		return printBlock(r)
	}

	line, err := r.ReadString('\n')
	if err != nil {
		return err
	}
	fmt.Print(line)
	return nil
}

func printBlock(r *bufio.Reader) error {
	header := make([]byte, 2)
	if _, err := io.ReadFull(r, header); err != nil {
		return err
	}
	n := int(header[1] - '0')
	digits := make([]byte, n)
	if _, err := io.ReadFull(r, digits); err != nil {
		return err
	}
	size, err := strconv.Atoi(string(digits))
	if err != nil {
		return fmt.Errorf("bad block length: %w", err)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return err
	}
	// consume the line terminator
	r.ReadByte()

	fmt.Printf("binary block: %d bytes, %d samples\n", size, size/2)
	max := size / 2
	if max > 8 {
		max = 8
	}
	for i := 0; i < max; i++ {
		fmt.Printf("  [%d] %d\n", i, binary.LittleEndian.Uint16(payload[2*i:]))
	}
	if size/2 > max {
		fmt.Printf("  ... (%d more)\n", size/2-max)
	}
	return nil
}
