package orchestrator

import (
	"context"
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/flowcanvas/flowcanvas/pkg/llm"
)

// scriptedStream replays a fixed chunk sequence.
type scriptedStream struct {
	chunks []llm.StreamChunk
	pos    int
	err    error
}

func (s *scriptedStream) Next(_ context.Context) (*llm.StreamChunk, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, nil
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return &chunk, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedStreamer serves one scripted stream per inference call and records
// every request it receives.
type scriptedStreamer struct {
	rounds   [][]llm.StreamChunk
	finalErr error
	requests []*llm.ChatRequest
}

func (s *scriptedStreamer) StreamChat(_ context.Context, req *llm.ChatRequest) (llm.Stream, error) {
	call := len(s.requests)
	s.requests = append(s.requests, req)

	if call >= len(s.rounds) {
		return nil, fmt.Errorf("unexpected inference call %d", call+1)
	}
	stream := &scriptedStream{chunks: s.rounds[call]}
	if call == len(s.rounds)-1 {
		stream.err = s.finalErr
	}
	return stream, nil
}

func collect(events <-chan TurnEvent) []TurnEvent {
	var collected []TurnEvent
	for ev := range events {
		collected = append(collected, ev)
	}
	return collected
}

func kinds(events []TurnEvent) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func textChunk(delta string) llm.StreamChunk {
	return llm.StreamChunk{TextDelta: delta}
}

func doneChunk(reason string) llm.StreamChunk {
	return llm.StreamChunk{Done: true, FinishReason: reason}
}

func toolDelta(index int, id, name, args string) llm.StreamChunk {
	return llm.StreamChunk{ToolCallDeltas: []llm.ToolCallDelta{
		{Index: index, ID: id, Name: name, ArgsFragment: args},
	}}
}

const validDDLArgs = `{"ddl":"flowchart LR\nA[Start] --> B[End]","mergeMode":"extend"}`

var userMessage = []llm.Message{llm.NewTextMessage("user", "draw me a flow")}

func newTestOrchestrator(streamer llm.Streamer, maxRounds int) *Orchestrator {
	return New(streamer, Config{Model: "test-model", MaxRounds: maxRounds})
}

var _ = Describe("RunTurn", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("plain text turns", func() {
		It("re-emits each text delta and finishes with the accumulated text", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				textChunk("Hel"),
				textChunk("lo"),
				doneChunk(llm.FinishStop),
			}}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{EventTextDelta, EventTextDelta, EventFinished}))
			Expect(events[0].Text).To(Equal("Hel"))
			Expect(events[1].Text).To(Equal("lo"))
			Expect(events[2].Text).To(Equal("Hello"))
			Expect(streamer.requests).To(HaveLen(1))
		})

		It("advertises both tools on the inference call", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{doneChunk(llm.FinishStop)}}}

			collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			names := []string{}
			for _, tool := range streamer.requests[0].Tools {
				names = append(names, tool.Name)
			}
			Expect(names).To(ConsistOf(ToolSynthesizeDiagram, ToolInspectCanvas))
		})

		It("treats accumulated fragments without a tool_calls stop as text", func() {
			// A truncated stream that never names tool_calls must not
			// execute a half-built invocation.
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				toolDelta(0, "call_1", ToolSynthesizeDiagram, `{"ddl":"flow`),
				doneChunk(llm.FinishLength),
			}}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{EventFinished}))
			Expect(streamer.requests).To(HaveLen(1))
		})
	})

	Describe("fragment accumulation", func() {
		It("concatenates argument fragments interleaved across two slots", func() {
			first := []llm.StreamChunk{
				toolDelta(0, "call_a", ToolSynthesizeDiagram, `{"ddl":"flowchart LR\n`),
				toolDelta(1, "call_b", ToolInspectCanvas, `{`),
				toolDelta(0, "", "", `A[Start] --> B[End]",`),
				toolDelta(1, "", "", `}`),
				toolDelta(0, "", "", `"mergeMode":"extend"}`),
				doneChunk(llm.FinishToolCalls),
			}
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{first}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{
				EventDiagramReady, EventToolResult, EventInspectionRequested, EventSuspended,
			}))

			diagram := events[0].Diagram
			Expect(diagram.InvocationID).To(Equal("call_a"))
			Expect(diagram.Err).To(BeEmpty())
			Expect(diagram.Elements).To(HaveLen(3))
			Expect(diagram.Spec.DDLText).To(Equal("flowchart LR\nA[Start] --> B[End]"))

			Expect(events[2].InvocationID).To(Equal("call_b"))
		})

		It("generates an invocation id when the provider omits one", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				toolDelta(0, "", ToolInspectCanvas, "{}"),
				doneChunk(llm.FinishToolCalls),
			}}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(events[0].Kind).To(Equal(EventInspectionRequested))
			Expect(events[0].InvocationID).To(HavePrefix("call_"))
		})
	})

	Describe("local tool continuation", func() {
		It("executes synthesize_diagram and auto-continues with the tool result", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{
				{
					toolDelta(0, "call_1", ToolSynthesizeDiagram, validDDLArgs),
					doneChunk(llm.FinishToolCalls),
				},
				{
					textChunk("Drew it for you."),
					doneChunk(llm.FinishStop),
				},
			}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{
				EventDiagramReady, EventToolResult, EventTextDelta, EventFinished,
			}))
			Expect(events[1].ToolIsError).To(BeFalse())
			Expect(events[1].ToolOutput).To(ContainSubstring("2 nodes, 1 connections"))

			Expect(streamer.requests).To(HaveLen(2))

			// The continuation transcript carries the assistant tool call
			// and its synthetic result.
			second := streamer.requests[1].Messages
			Expect(second).To(HaveLen(3))
			Expect(second[1].Role).To(Equal("assistant"))
			Expect(second[1].ToolCalls()).To(HaveLen(1))
			Expect(second[2].ToolResultIDs()).To(Equal([]string{"call_1"}))
		})

		It("reports a DDL conversion failure inside the diagram result", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{
				{
					toolDelta(0, "call_1", ToolSynthesizeDiagram, `{"ddl":"not a diagram"}`),
					doneChunk(llm.FinishToolCalls),
				},
				{doneChunk(llm.FinishStop)},
			}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(events[0].Kind).To(Equal(EventDiagramReady))
			Expect(events[0].Diagram.Err).NotTo(BeEmpty())
			Expect(events[0].Diagram.Elements).To(BeEmpty())

			Expect(events[1].Kind).To(Equal(EventToolResult))
			Expect(events[1].ToolIsError).To(BeTrue())
			Expect(events[1].ToolOutput).To(ContainSubstring("Diagram synthesis failed"))
		})

		It("isolates malformed arguments to the failing invocation", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{
				{
					toolDelta(0, "call_1", ToolSynthesizeDiagram, `{"ddl": truncated`),
					doneChunk(llm.FinishToolCalls),
				},
				{
					textChunk("Something went wrong with that diagram."),
					doneChunk(llm.FinishStop),
				},
			}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{
				EventToolResult, EventTextDelta, EventFinished,
			}))
			Expect(events[0].ToolIsError).To(BeTrue())
			Expect(events[0].ToolOutput).To(ContainSubstring("malformed tool arguments"))
			Expect(streamer.requests).To(HaveLen(2))
		})

		It("answers unknown tools with an error result and continues", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{
				{
					toolDelta(0, "call_1", "delete_everything", "{}"),
					doneChunk(llm.FinishToolCalls),
				},
				{doneChunk(llm.FinishStop)},
			}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(events[0].Kind).To(Equal(EventToolResult))
			Expect(events[0].ToolIsError).To(BeTrue())
			Expect(events[0].ToolOutput).To(ContainSubstring("unknown tool"))
			Expect(streamer.requests).To(HaveLen(2))
		})

		It("fails the turn when the continuation limit is exhausted", func() {
			round := []llm.StreamChunk{
				toolDelta(0, "call_1", ToolSynthesizeDiagram, validDDLArgs),
				doneChunk(llm.FinishToolCalls),
			}
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{round, round}}

			events := collect(newTestOrchestrator(streamer, 2).RunTurn(ctx, userMessage))

			last := events[len(events)-1]
			Expect(last.Kind).To(Equal(EventFailed))
			Expect(last.Text).To(ContainSubstring("tool continuation limit reached"))
			Expect(streamer.requests).To(HaveLen(2))
		})
	})

	Describe("suspension for host tools", func() {
		It("suspends on inspect_canvas without a continuation call", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				toolDelta(0, "call_1", ToolInspectCanvas, "{}"),
				doneChunk(llm.FinishToolCalls),
			}}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{EventInspectionRequested, EventSuspended}))
			Expect(events[0].InvocationID).To(Equal("call_1"))
			Expect(streamer.requests).To(HaveLen(1))
		})

		It("still suspends when a local tool rides alongside the host tool", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				toolDelta(0, "call_1", ToolSynthesizeDiagram, validDDLArgs),
				toolDelta(1, "call_2", ToolInspectCanvas, "{}"),
				doneChunk(llm.FinishToolCalls),
			}}}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{
				EventDiagramReady, EventToolResult, EventInspectionRequested, EventSuspended,
			}))
			Expect(streamer.requests).To(HaveLen(1))
		})
	})

	Describe("resume validation", func() {
		assistantCall := llm.Message{
			Role: "assistant",
			Content: []llm.ContentBlock{{
				Type: "tool_use", ToolUseID: "call_9", ToolName: ToolInspectCanvas, ToolArgs: "{}",
			}},
		}

		It("rejects a transcript with unanswered tool calls before any inference", func() {
			streamer := &scriptedStreamer{}
			transcript := append([]llm.Message{}, userMessage...)
			transcript = append(transcript, assistantCall)

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, transcript))

			Expect(kinds(events)).To(Equal([]EventKind{EventFailed}))
			Expect(events[0].Text).To(ContainSubstring("unanswered tool call"))
			Expect(streamer.requests).To(BeEmpty())
		})

		It("accepts a transcript whose tool calls are all answered", func() {
			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				textChunk("The canvas has two boxes."),
				doneChunk(llm.FinishStop),
			}}}

			transcript := append([]llm.Message{}, userMessage...)
			transcript = append(transcript, assistantCall)
			transcript = append(transcript, llm.NewToolResultMessage("call_9", "2 nodes, 0 edges", false))

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, transcript))

			Expect(kinds(events)).To(Equal([]EventKind{EventTextDelta, EventFinished}))
			Expect(streamer.requests).To(HaveLen(1))
		})
	})

	Describe("stream failures", func() {
		It("fails the turn when the inference call cannot be opened", func() {
			streamer := &scriptedStreamer{} // zero rounds scripted

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			Expect(kinds(events)).To(Equal([]EventKind{EventFailed}))
			Expect(events[0].Text).To(ContainSubstring("inference call failed"))
		})

		It("fails the turn on a mid-stream error", func() {
			streamer := &scriptedStreamer{
				rounds:   [][]llm.StreamChunk{{textChunk("par")}},
				finalErr: errors.New("connection reset"),
			}

			events := collect(newTestOrchestrator(streamer, 0).RunTurn(ctx, userMessage))

			last := events[len(events)-1]
			Expect(last.Kind).To(Equal(EventFailed))
			Expect(last.Text).To(ContainSubstring("stream error"))
		})

		It("stops emitting when the caller cancels the context", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			streamer := &scriptedStreamer{rounds: [][]llm.StreamChunk{{
				textChunk("never seen"),
				doneChunk(llm.FinishStop),
			}}}

			// The unbuffered-consumer case: with a cancelled context every
			// emit falls through, and the channel still closes.
			events := newTestOrchestrator(streamer, 0).RunTurn(cancelled, userMessage)
			Eventually(events).Should(BeClosed())
		})
	})
})
