// Command hiddensim runs hidden-station contention scenarios and prints the
// throughput of every server.
package main

func main() {
	Execute()
}
