package awscli

import (
	"strings"
	"testing"
)

func TestBuildTunnelArgs(t *testing.T) {
	c := New()
	args := c.BuildTunnelArgs("i-0abc", 9811, "dev")
	want := "ec2-instance-connect open-tunnel --instance-id i-0abc --remote-port 3389 --local-port 9811 --profile dev"
	if got := strings.Join(args, " "); got != want {
		t.Fatalf("unexpected args:\n got %s\nwant %s", got, want)
	}
}

func TestParseInstancesFlattensReservations(t *testing.T) {
	data := []byte(`{
	  "Reservations": [
	    {"Instances": [
	      {"InstanceId": "i-0001", "State": {"Name": "running"}, "InstanceType": "t3.large",
	       "PrivateIpAddress": "10.0.1.5",
	       "Tags": [{"Key": "env", "Value": "dev"}, {"Key": "Name", "Value": "web-1"}]}
	    ]},
	    {"Instances": [
	      {"InstanceId": "i-0002", "State": {"Name": "stopped"}, "InstanceType": "t3.micro",
	       "PrivateIpAddress": "10.0.1.9"}
	    ]}
	  ]
	}`)
	insts, err := parseInstances(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(insts))
	}
	// Unnamed instances sort ahead of named ones (empty Name first).
	if insts[0].ID != "i-0002" || insts[0].Name != "" {
		t.Fatalf("unexpected first instance: %+v", insts[0])
	}
	if insts[1].Name != "web-1" || insts[1].State != "running" || insts[1].PrivateIP != "10.0.1.5" {
		t.Fatalf("unexpected instance fields: %+v", insts[1])
	}
}

func TestParseInstancesRejectsGarbage(t *testing.T) {
	if _, err := parseInstances([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestParseInstancesEmptyDocument(t *testing.T) {
	insts, err := parseInstances([]byte(`{"Reservations": []}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(insts) != 0 {
		t.Fatalf("expected no instances, got %d", len(insts))
	}
}
